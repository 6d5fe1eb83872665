package builtins

import (
	"context"
	"math"

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/domain"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/series"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Allocator = (*SMACross)(nil)

// SMACross holds the assets whose short moving average sits above their long
// moving average, equal-weighted, and leaves the rest in cash. Averages run
// over a price index rebuilt from the window's returns, so the signal only
// depends on the shape of each asset's path.
type SMACross struct {
	shortPeriod int
	longPeriod  int
}

// NewSMACross creates an SMA crossover allocator with the given short and
// long averaging periods.
func NewSMACross(short, long int) *SMACross {
	return &SMACross{
		shortPeriod: short,
		longPeriod:  long,
	}
}

// Name returns "sma-cross".
func (a *SMACross) Name() string {
	return "sma-cross"
}

// Allocate equal-weights the assets whose short SMA exceeds their long SMA
// at the window end. When no asset qualifies every weight is zero and the
// portfolio goes to cash until the next rebalance.
func (a *SMACross) Allocate(_ context.Context, window *series.Frame, _ []float64) (map[string]float64, []domain.Warning, error) {
	if a.shortPeriod < 1 || a.longPeriod <= a.shortPeriod {
		return nil, nil, domain.Validationf("sma periods must satisfy 0 < short < long, got %d and %d",
			a.shortPeriod, a.longPeriod)
	}
	symbols := window.Symbols()
	if len(symbols) == 0 {
		return nil, nil, domain.Validationf("no assets in allocation window")
	}
	// The rebuilt price index has one more point than the return window.
	if window.Len()+1 < a.longPeriod {
		return nil, nil, domain.Validationf("window has %d observations, need %d for the long average",
			window.Len(), a.longPeriod-1)
	}

	var selected []string
	for _, sym := range symbols {
		col, _ := window.Column(sym)
		prices := rebuildPrices(col)
		if sma(prices, a.shortPeriod) > sma(prices, a.longPeriod) {
			selected = append(selected, sym)
		}
	}

	weights := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		weights[sym] = 0
	}
	if len(selected) > 0 {
		w := 1 / float64(len(selected))
		for _, sym := range selected {
			weights[sym] = w
		}
	}
	return weights, nil, nil
}

// rebuildPrices compounds returns into a price index starting at 1.
// Non-finite returns contribute no growth for that period.
func rebuildPrices(returns []float64) []float64 {
	prices := make([]float64, len(returns)+1)
	prices[0] = 1
	for i, r := range returns {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			prices[i+1] = prices[i]
			continue
		}
		prices[i+1] = prices[i] * (1 + r)
	}
	return prices
}

// sma averages the trailing n points.
func sma(prices []float64, n int) float64 {
	var s float64
	for _, p := range prices[len(prices)-n:] {
		s += p
	}
	return s / float64(n)
}
