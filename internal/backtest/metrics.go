package backtest

import (
	"math"
	"time"
)

// computeMetrics summarizes a value path against its starting capital.
// Annualization uses calendar time for the geometric return and the
// sampling frequency for volatility and Sharpe.
func computeMetrics(dates []time.Time, values []float64, initial, periodRF, periodsPerYear float64) Metrics {
	var m Metrics
	if len(values) == 0 || !(initial > 0) {
		return m
	}

	final := values[len(values)-1]
	m.TotalReturn = final/initial - 1

	years := dates[len(dates)-1].Sub(dates[0]).Hours() / 24 / 365.25
	if years > 0 {
		base := 1 + m.TotalReturn
		if base > 0 {
			m.AnnualizedReturn = math.Pow(base, 1/years) - 1
		} else {
			// A wiped-out portfolio annualizes to total loss.
			m.AnnualizedReturn = -1
		}
	}

	rets := periodReturns(values)
	if len(rets) >= 2 {
		m.AnnualizedVolatility = sampleStd(rets) * math.Sqrt(periodsPerYear)
	}
	if m.AnnualizedVolatility > 0 {
		excess := meanOf(rets) - periodRF
		m.SharpeRatio = excess * periodsPerYear / m.AnnualizedVolatility
	}

	m.MaxDrawdown = maxDrawdown(values)
	m.WinRate = winRate(rets)
	return m
}

// periodReturns is the step-to-step percentage change of the value path.
// Steps from a non-positive value contribute zero.
func periodReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for t := 1; t < len(values); t++ {
		if values[t-1] > 0 {
			out[t-1] = values[t]/values[t-1] - 1
		}
	}
	return out
}

// maxDrawdown is the deepest decline from a running peak, as a non-positive
// fraction.
func maxDrawdown(values []float64) float64 {
	var dd float64
	peak := math.Inf(-1)
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if d := v/peak - 1; d < dd {
				dd = d
			}
		}
	}
	return dd
}

func winRate(rets []float64) float64 {
	if len(rets) == 0 {
		return 0
	}
	wins := 0
	for _, r := range rets {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(rets))
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, v := range xs {
		s += v
	}
	return s / float64(len(xs))
}

// sampleStd is the unbiased standard deviation (ddof=1).
func sampleStd(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	m := meanOf(xs)
	var s float64
	for _, v := range xs {
		d := v - m
		s += d * d
	}
	return math.Sqrt(s / float64(n-1))
}

func usable(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p > 0
}
