// Package builtins provides the allocator implementations that ship with
// the platform.
package builtins

import (
	"context"

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/domain"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/series"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Allocator = (*EqualWeight)(nil)

// EqualWeight assigns 1/N to every asset in the window. It is both a
// registrable allocator and the fallback the backtest uses when model-based
// allocation is unavailable.
type EqualWeight struct{}

// NewEqualWeight creates the equal-weight allocator.
func NewEqualWeight() *EqualWeight {
	return &EqualWeight{}
}

// Name returns "equal-weight".
func (a *EqualWeight) Name() string {
	return "equal-weight"
}

// Allocate assigns every window symbol the same weight.
func (a *EqualWeight) Allocate(_ context.Context, window *series.Frame, _ []float64) (map[string]float64, []domain.Warning, error) {
	symbols := window.Symbols()
	if len(symbols) == 0 {
		return nil, nil, domain.Validationf("no assets in allocation window")
	}
	w := 1 / float64(len(symbols))
	weights := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		weights[sym] = w
	}
	return weights, nil, nil
}
