package factor

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/domain"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/series"
)

func seqDates(n int) []time.Time {
	out := make([]time.Time, n)
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = d
		d = d.AddDate(0, 0, 1)
	}
	return out
}

func frameOf(t *testing.T, cols map[string][]float64) *series.Frame {
	t.Helper()
	n := 0
	for _, c := range cols {
		n = len(c)
		break
	}
	f, err := series.NewFrame(seqDates(n), cols)
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	return f
}

func repeat(pattern []float64, times int) []float64 {
	out := make([]float64, 0, len(pattern)*times)
	for i := 0; i < times; i++ {
		out = append(out, pattern...)
	}
	return out
}

func TestFitKnownRegression(t *testing.T) {
	// y = 2x with alternating +-0.1 residuals. Twelve paired points give
	// beta=2, alpha=0, SSE=0.12, so residual variance 0.012 and
	// SE(beta) = sqrt(0.012/30) = 0.02.
	x := repeat([]float64{-2, -1, 1, 2}, 3)
	y := repeat([]float64{-4.1, -1.9, 2.1, 3.9}, 3)

	est := NewEstimator()
	if err := est.Fit(frameOf(t, map[string][]float64{"A": y}), x); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	params, err := est.Params()
	if err != nil {
		t.Fatalf("Params: %v", err)
	}
	p, ok := params["A"]
	if !ok {
		t.Fatalf("asset A missing from params: %v", params)
	}
	if math.Abs(p.Beta-2) > 1e-9 {
		t.Errorf("Beta = %v, want 2", p.Beta)
	}
	if math.Abs(p.Alpha) > 1e-9 {
		t.Errorf("Alpha = %v, want 0", p.Alpha)
	}
	if math.Abs(p.ResidualVariance-0.012) > 1e-9 {
		t.Errorf("ResidualVariance = %v, want 0.012", p.ResidualVariance)
	}
	if math.Abs(p.BetaStdErr-0.02) > 1e-9 {
		t.Errorf("BetaStdErr = %v, want 0.02", p.BetaStdErr)
	}
	if math.Abs(p.TStat-100) > 1e-6 {
		t.Errorf("TStat = %v, want 100", p.TStat)
	}
	if p.PValue > 1e-12 {
		t.Errorf("PValue = %v, want ~0", p.PValue)
	}
	if want := 3600.0 / 3603.6; math.Abs(p.RSquared-want) > 1e-9 {
		t.Errorf("RSquared = %v, want %v", p.RSquared, want)
	}
	if p.Observations != 12 {
		t.Errorf("Observations = %d, want 12", p.Observations)
	}

	market, err := est.Market()
	if err != nil {
		t.Fatalf("Market: %v", err)
	}
	if math.Abs(market.Mean) > 1e-12 {
		t.Errorf("market mean = %v, want 0", market.Mean)
	}
	if want := 30.0 / 11.0; math.Abs(market.Variance-want) > 1e-9 {
		t.Errorf("market variance = %v, want %v", market.Variance, want)
	}

	// Twelve observations is below the confidence threshold.
	found := false
	for _, w := range est.Warnings() {
		if w.Code == domain.WarnLowConfidence && w.Symbol == "A" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected low-confidence warning, got %v", est.Warnings())
	}
}

func TestExpectedReturnsPerfectFit(t *testing.T) {
	// Exact binary fractions keep the fit residual-free: beta is exactly
	// 0.5, alpha 0, and the zero standard error pins t at 0 and p at 1.
	x := repeat([]float64{0.25, 0.5}, 6)
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = 0.5 * v
	}

	est := NewEstimator()
	if err := est.Fit(frameOf(t, map[string][]float64{"A": y}), x); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	params, _ := est.Params()
	p := params["A"]
	if p.Beta != 0.5 || p.Alpha != 0 {
		t.Errorf("fit = beta %v alpha %v, want 0.5 and 0", p.Beta, p.Alpha)
	}
	if p.TStat != 0 {
		t.Errorf("TStat = %v, want 0 for zero standard error", p.TStat)
	}
	if p.PValue != 1 {
		t.Errorf("PValue = %v, want 1", p.PValue)
	}

	exp, err := est.ExpectedReturns()
	if err != nil {
		t.Fatalf("ExpectedReturns: %v", err)
	}
	if exp["A"] != 0.1875 {
		t.Errorf("expected return = %v, want 0.1875", exp["A"])
	}

	betas, _ := est.Betas()
	if betas["A"] != 0.5 {
		t.Errorf("Betas = %v", betas)
	}
	resvars, _ := est.ResidualVariances()
	if resvars["A"] != 0 {
		t.Errorf("ResidualVariances = %v", resvars)
	}
}

func TestFitSkipsUnusableAssets(t *testing.T) {
	n := 12
	x := repeat([]float64{-2, -1, 1, 2}, 3)

	good := make([]float64, n)
	for i := range good {
		good[i] = 1.5 * x[i]
	}
	sparse := make([]float64, n)
	for i := range sparse {
		sparse[i] = math.NaN()
	}
	sparse[0], sparse[1], sparse[2], sparse[3], sparse[4] = 1, 2, 3, 4, 5
	empty := make([]float64, n)
	for i := range empty {
		empty[i] = math.NaN()
	}

	est := NewEstimator()
	err := est.Fit(frameOf(t, map[string][]float64{
		"GOOD": good, "SPARSE": sparse, "EMPTY": empty,
	}), x)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	params, _ := est.Params()
	if len(params) != 1 {
		t.Fatalf("params = %v, want only GOOD", params)
	}
	if _, ok := params["GOOD"]; !ok {
		t.Fatal("GOOD should be fitted")
	}

	skipped := est.Skipped()
	if len(skipped) != 2 || skipped[0] != "EMPTY" || skipped[1] != "SPARSE" {
		t.Errorf("Skipped = %v, want [EMPTY SPARSE]", skipped)
	}

	unfit := 0
	for _, w := range est.Warnings() {
		if w.Code == domain.WarnUnfitAsset {
			unfit++
			if !strings.Contains(w.Detail, "observations") {
				t.Errorf("unexpected detail: %q", w.Detail)
			}
		}
	}
	if unfit != 2 {
		t.Errorf("unfit warnings = %d, want 2", unfit)
	}
}

func TestFitConstantFactor(t *testing.T) {
	n := 12
	x := make([]float64, n)
	for i := range x {
		x[i] = 0.01
	}
	y := make([]float64, n)
	for i := range y {
		y[i] = float64(i)
	}

	est := NewEstimator()
	if err := est.Fit(frameOf(t, map[string][]float64{"A": y}), x); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if skipped := est.Skipped(); len(skipped) != 1 || skipped[0] != "A" {
		t.Errorf("Skipped = %v, want [A]", skipped)
	}
	found := false
	for _, w := range est.Warnings() {
		if w.Code == domain.WarnUnfitAsset && strings.Contains(w.Detail, "constant") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected constant-factor warning, got %v", est.Warnings())
	}
}

func TestFitLengthMismatch(t *testing.T) {
	est := NewEstimator()
	err := est.Fit(frameOf(t, map[string][]float64{"A": {1, 2, 3}}), []float64{1, 2})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want ValidationError, got %v", err)
	}
}

func TestAccessorsBeforeFit(t *testing.T) {
	est := NewEstimator()
	var serr *domain.StateError

	if _, err := est.Params(); !errors.As(err, &serr) {
		t.Errorf("Params before fit: %v", err)
	}
	if _, err := est.ExpectedReturns(); !errors.As(err, &serr) {
		t.Errorf("ExpectedReturns before fit: %v", err)
	}
	if _, err := est.Betas(); !errors.As(err, &serr) {
		t.Errorf("Betas before fit: %v", err)
	}
	if _, err := est.ResidualVariances(); !errors.As(err, &serr) {
		t.Errorf("ResidualVariances before fit: %v", err)
	}
	if _, err := est.Market(); !errors.As(err, &serr) {
		t.Errorf("Market before fit: %v", err)
	}
}

func TestMarketStatsSkipGaps(t *testing.T) {
	f, err := series.NewFrame(seqDates(4), map[string][]float64{})
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	est := NewEstimator()
	if err := est.Fit(f, []float64{0.01, 0.02, math.NaN(), 0.03}); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	market, _ := est.Market()
	if math.Abs(market.Mean-0.02) > 1e-15 {
		t.Errorf("mean = %v, want 0.02", market.Mean)
	}
	if math.Abs(market.Variance-0.0001) > 1e-15 {
		t.Errorf("variance = %v, want 0.0001", market.Variance)
	}
}
