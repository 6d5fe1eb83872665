// Package series provides an immutable, date-aligned collection of float
// columns keyed by symbol. It is the common currency between the data feed,
// the factor estimator, and the backtest engine. Missing observations are
// represented as NaN.
package series

import (
	"math"
	"sort"
	"time"

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/domain"
)

// Frame is a rectangular block of float columns sharing one strictly
// increasing date index. Construct it with NewFrame; treat it as read-only
// afterwards. Transform methods return new frames and never mutate the
// receiver, though slicing methods may share backing arrays with it.
type Frame struct {
	dates   []time.Time
	symbols []string
	cols    map[string][]float64
}

// NewFrame builds a frame from a date index and a set of equally long
// columns. Column order is the sorted symbol order. Dates must be strictly
// increasing and every column must match the index length.
func NewFrame(dates []time.Time, columns map[string][]float64) (*Frame, error) {
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			return nil, domain.Validationf("dates must be strictly increasing: %s then %s",
				dates[i-1].Format("2006-01-02"), dates[i].Format("2006-01-02"))
		}
	}
	symbols := make([]string, 0, len(columns))
	for sym, col := range columns {
		if len(col) != len(dates) {
			return nil, domain.Validationf("column %s has %d values for %d dates", sym, len(col), len(dates))
		}
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return &Frame{dates: dates, symbols: symbols, cols: columns}, nil
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.dates) }

// Dates returns the date index. Callers must not modify it.
func (f *Frame) Dates() []time.Time { return f.dates }

// Symbols returns the column names in sorted order. Callers must not
// modify the slice.
func (f *Frame) Symbols() []string { return f.symbols }

// Column returns the values for one symbol. Callers must not modify the
// slice. The second return is false when the symbol is absent.
func (f *Frame) Column(symbol string) ([]float64, bool) {
	col, ok := f.cols[symbol]
	return col, ok
}

// Row returns a symbol-to-value map for one row index. NaN entries are
// included; callers decide how to treat them.
func (f *Frame) Row(i int) map[string]float64 {
	row := make(map[string]float64, len(f.symbols))
	for _, sym := range f.symbols {
		row[sym] = f.cols[sym][i]
	}
	return row
}

// Select returns a frame restricted to the given symbols.
func (f *Frame) Select(symbols ...string) (*Frame, error) {
	cols := make(map[string][]float64, len(symbols))
	for _, sym := range symbols {
		col, ok := f.cols[sym]
		if !ok {
			return nil, domain.Validationf("symbol %s not in frame", sym)
		}
		cols[sym] = col
	}
	return NewFrame(f.dates, cols)
}

// Drop returns a frame without the given symbols. Unknown symbols are
// ignored.
func (f *Frame) Drop(symbols ...string) *Frame {
	skip := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		skip[sym] = true
	}
	cols := make(map[string][]float64, len(f.cols))
	for sym, col := range f.cols {
		if !skip[sym] {
			cols[sym] = col
		}
	}
	out, _ := NewFrame(f.dates, cols)
	return out
}

// Slice returns rows [i, j). The result shares backing arrays with the
// receiver.
func (f *Frame) Slice(i, j int) (*Frame, error) {
	if i < 0 || j < i || j > len(f.dates) {
		return nil, domain.Validationf("slice [%d, %d) out of range for %d rows", i, j, len(f.dates))
	}
	cols := make(map[string][]float64, len(f.cols))
	for sym, col := range f.cols {
		cols[sym] = col[i:j]
	}
	return NewFrame(f.dates[i:j], cols)
}

// Window returns the n trailing rows ending at index end, inclusive.
func (f *Frame) Window(end, n int) (*Frame, error) {
	if end < 0 || end >= len(f.dates) {
		return nil, domain.Validationf("window end %d out of range for %d rows", end, len(f.dates))
	}
	if n < 1 || n > end+1 {
		return nil, domain.Validationf("window length %d invalid at index %d", n, end)
	}
	return f.Slice(end+1-n, end+1)
}

// MissingCounts returns the number of non-finite values per symbol.
func (f *Frame) MissingCounts() map[string]int {
	counts := make(map[string]int, len(f.symbols))
	for _, sym := range f.symbols {
		n := 0
		for _, v := range f.cols[sym] {
			if !isFinite(v) {
				n++
			}
		}
		counts[sym] = n
	}
	return counts
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
