package series

import (
	"math"
	"sort"
	"time"

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/domain"
)

// SimpleReturns computes p[t]/p[t-1] - 1 per column. The result has one row
// fewer than the receiver. A return is NaN when either price is non-finite
// or the prior price is zero.
func (f *Frame) SimpleReturns() *Frame {
	return f.returns(func(prev, cur float64) float64 {
		if !isFinite(prev) || !isFinite(cur) || prev == 0 {
			return math.NaN()
		}
		return cur/prev - 1
	})
}

// LogReturns computes ln(p[t]/p[t-1]) per column. A return is NaN when
// either price is non-finite or the ratio is not positive.
func (f *Frame) LogReturns() *Frame {
	return f.returns(func(prev, cur float64) float64 {
		if !isFinite(prev) || !isFinite(cur) || prev <= 0 || cur <= 0 {
			return math.NaN()
		}
		return math.Log(cur / prev)
	})
}

func (f *Frame) returns(fn func(prev, cur float64) float64) *Frame {
	n := len(f.dates)
	if n < 2 {
		empty, _ := NewFrame(nil, map[string][]float64{})
		return empty
	}
	cols := make(map[string][]float64, len(f.cols))
	for sym, col := range f.cols {
		out := make([]float64, n-1)
		for t := 1; t < n; t++ {
			out[t-1] = fn(col[t-1], col[t])
		}
		cols[sym] = out
	}
	out, _ := NewFrame(f.dates[1:], cols)
	return out
}

// ForwardFill replaces each non-finite value with the most recent finite
// value in its column. Leading gaps remain NaN.
func (f *Frame) ForwardFill() *Frame {
	cols := make(map[string][]float64, len(f.cols))
	for sym, col := range f.cols {
		out := make([]float64, len(col))
		last := math.NaN()
		for i, v := range col {
			if isFinite(v) {
				last = v
			}
			out[i] = last
		}
		cols[sym] = out
	}
	out, _ := NewFrame(f.dates, cols)
	return out
}

// DropLeadingRows removes rows from the front until every column is finite,
// so forward-filled data starts at the first fully observed date. If no such
// row exists the result is empty.
func (f *Frame) DropLeadingRows() *Frame {
	first := len(f.dates)
	for i := 0; i < len(f.dates); i++ {
		if f.rowComplete(i) {
			first = i
			break
		}
	}
	out, _ := f.Slice(first, len(f.dates))
	return out
}

func (f *Frame) rowComplete(i int) bool {
	for _, sym := range f.symbols {
		if !isFinite(f.cols[sym][i]) {
			return false
		}
	}
	return true
}

// Resample aggregates rows into weekly or monthly periods, keeping the last
// finite value per period. Row labels move to the calendar period end: the
// Sunday of the week or the last day of the month, at midnight UTC, so that
// resampled series land exactly on rebalance boundaries. Daily resampling
// returns the frame unchanged.
func (f *Frame) Resample(freq domain.SampleFrequency) (*Frame, error) {
	switch freq {
	case domain.FreqDaily:
		return f, nil
	case domain.FreqWeekly, domain.FreqMonthly:
	default:
		return nil, domain.Validationf("unknown sample frequency %q", freq)
	}

	label := func(d time.Time) time.Time {
		if freq == domain.FreqWeekly {
			days := (7 - int(d.Weekday())) % 7
			d = d.AddDate(0, 0, days)
			return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		}
		return time.Date(d.Year(), d.Month()+1, 0, 0, 0, 0, 0, time.UTC)
	}

	var labels []time.Time
	var groups [][2]int // row ranges [start, end)
	for i := 0; i < len(f.dates); {
		l := label(f.dates[i])
		j := i + 1
		for j < len(f.dates) && label(f.dates[j]).Equal(l) {
			j++
		}
		labels = append(labels, l)
		groups = append(groups, [2]int{i, j})
		i = j
	}

	cols := make(map[string][]float64, len(f.cols))
	for sym, col := range f.cols {
		out := make([]float64, len(groups))
		for g, r := range groups {
			v := math.NaN()
			for i := r[0]; i < r[1]; i++ {
				if isFinite(col[i]) {
					v = col[i]
				}
			}
			out[g] = v
		}
		cols[sym] = out
	}
	return NewFrame(labels, cols)
}

// Winsorize clips each column at its empirical lower and upper quantiles,
// computed over finite values only. Bounds must satisfy
// 0 <= lower < upper <= 1.
func (f *Frame) Winsorize(lower, upper float64) (*Frame, error) {
	if lower < 0 || upper > 1 || lower >= upper {
		return nil, domain.Validationf("winsorize bounds [%g, %g] invalid", lower, upper)
	}
	cols := make(map[string][]float64, len(f.cols))
	for sym, col := range f.cols {
		finite := make([]float64, 0, len(col))
		for _, v := range col {
			if isFinite(v) {
				finite = append(finite, v)
			}
		}
		out := make([]float64, len(col))
		copy(out, col)
		if len(finite) > 0 {
			sort.Float64s(finite)
			lo := quantile(finite, lower)
			hi := quantile(finite, upper)
			for i, v := range out {
				if !isFinite(v) {
					continue
				}
				if v < lo {
					out[i] = lo
				} else if v > hi {
					out[i] = hi
				}
			}
		}
		cols[sym] = out
	}
	out, _ := NewFrame(f.dates, cols)
	return out, nil
}

// quantile interpolates linearly on an ascending slice.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	i := int(math.Floor(pos))
	if i >= n-1 {
		return sorted[n-1]
	}
	frac := pos - float64(i)
	return sorted[i]*(1-frac) + sorted[i+1]*frac
}
