package egp

import (
	"errors"
	"math"
	"testing"

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/domain"
)

func TestPortfolioStatistics(t *testing.T) {
	// The exact two-asset case puts everything in X, so the portfolio
	// inherits X's model: var = beta^2 * marketVar + residVar.
	in := Inputs{
		ExpectedReturns:   map[string]float64{"X": 0.001, "Y": 0.0005},
		Betas:             map[string]float64{"X": 1, "Y": 1},
		ResidualVariances: map[string]float64{"X": 0.0001, "Y": 0.0001},
		MarketVariance:    0.0001,
		RiskFreeRate:      0,
	}
	opt, err := New(in, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := opt.Optimize(); err != nil {
		t.Fatalf("Optimize: %v", err)
	}

	stats, err := opt.PortfolioStatistics()
	if err != nil {
		t.Fatalf("PortfolioStatistics: %v", err)
	}
	if math.Abs(stats.ExpectedReturn-0.001) > 1e-6 {
		t.Errorf("ExpectedReturn = %v, want 0.001", stats.ExpectedReturn)
	}
	if math.Abs(stats.Beta-1) > 1e-6 {
		t.Errorf("Beta = %v, want 1", stats.Beta)
	}
	if math.Abs(stats.Variance-0.0002) > 1e-9 {
		t.Errorf("Variance = %v, want 0.0002", stats.Variance)
	}
	wantStd := math.Sqrt(0.0002)
	if math.Abs(stats.StdDev-wantStd) > 1e-9 {
		t.Errorf("StdDev = %v, want %v", stats.StdDev, wantStd)
	}
	wantSharpe := 0.001 / wantStd
	if math.Abs(stats.Sharpe-wantSharpe) > 1e-6 {
		t.Errorf("Sharpe = %v, want %v", stats.Sharpe, wantSharpe)
	}
}

func TestStatisticsBeforeOptimize(t *testing.T) {
	opt, err := New(fourAssets(), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var serr *domain.StateError
	if _, err := opt.PortfolioStatistics(); !errors.As(err, &serr) {
		t.Errorf("PortfolioStatistics before Optimize: %v", err)
	}
	if _, err := opt.TopHoldings(3); !errors.As(err, &serr) {
		t.Errorf("TopHoldings before Optimize: %v", err)
	}
}

func TestTopHoldings(t *testing.T) {
	opt, err := New(fourAssets(), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := opt.Optimize(); err != nil {
		t.Fatalf("Optimize: %v", err)
	}

	top, err := opt.TopHoldings(2)
	if err != nil {
		t.Fatalf("TopHoldings: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("len = %d, want 2", len(top))
	}
	if top[0].Symbol != "C" || top[1].Symbol != "A" {
		t.Errorf("top holdings = %v, want C then A", top)
	}

	all, err := opt.TopHoldings(10)
	if err != nil {
		t.Fatalf("TopHoldings: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("oversized n should return all 4, got %d", len(all))
	}

	none, err := opt.TopHoldings(0)
	if err != nil || none != nil {
		t.Errorf("TopHoldings(0) = %v, %v", none, err)
	}
}

func TestTopHoldingsTies(t *testing.T) {
	// Degenerate equal weights tie on magnitude; symbols break the tie.
	in := Inputs{
		ExpectedReturns:   map[string]float64{"N": 0.0001, "M": 0.0001},
		Betas:             map[string]float64{"N": 1, "M": 1},
		ResidualVariances: map[string]float64{"N": 0.0001, "M": 0.0001},
		MarketVariance:    0.0001,
		RiskFreeRate:      0.01,
	}
	opt, err := New(in, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := opt.Optimize(); err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	top, err := opt.TopHoldings(2)
	if err != nil {
		t.Fatalf("TopHoldings: %v", err)
	}
	if top[0].Symbol != "M" || top[1].Symbol != "N" {
		t.Errorf("tie break = %v, want M then N", top)
	}
}
