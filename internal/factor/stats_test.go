package factor

import (
	"math"
	"testing"
)

func TestMeanAndVariance(t *testing.T) {
	xs := []float64{0.01, 0.02, 0.03}
	if got := mean(xs); math.Abs(got-0.02) > 1e-15 {
		t.Errorf("mean = %v, want 0.02", got)
	}
	if got := sampleVariance(xs); math.Abs(got-0.0001) > 1e-15 {
		t.Errorf("variance = %v, want 0.0001", got)
	}
	if got := sampleVariance([]float64{5}); got != 0 {
		t.Errorf("variance of one value = %v, want 0", got)
	}
	if got := mean(nil); got != 0 {
		t.Errorf("mean of empty = %v, want 0", got)
	}
}

func TestCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	y := []float64{2, 4, 6, 8}
	if got := correlation(x, y); math.Abs(got-1) > 1e-12 {
		t.Errorf("perfect positive correlation = %v, want 1", got)
	}
	yneg := []float64{8, 6, 4, 2}
	if got := correlation(x, yneg); math.Abs(got+1) > 1e-12 {
		t.Errorf("perfect negative correlation = %v, want -1", got)
	}
	flat := []float64{3, 3, 3, 3}
	if got := correlation(x, flat); got != 0 {
		t.Errorf("correlation with constant = %v, want 0", got)
	}
}

func TestStudentTPValue(t *testing.T) {
	// Critical value for a two-sided 5% test with 10 degrees of freedom.
	if got := studentTPValue(2.2281, 10); math.Abs(got-0.05) > 5e-4 {
		t.Errorf("p(2.2281, df=10) = %v, want ~0.05", got)
	}
	// With df=1 the distribution is Cauchy and P(|T| >= 1) is exactly 0.5.
	if got := studentTPValue(1, 1); math.Abs(got-0.5) > 1e-10 {
		t.Errorf("p(1, df=1) = %v, want 0.5", got)
	}
	if got := studentTPValue(0, 20); math.Abs(got-1) > 1e-12 {
		t.Errorf("p(0) = %v, want 1", got)
	}
	if got := studentTPValue(50, 30); got > 1e-10 {
		t.Errorf("p(50, df=30) = %v, want ~0", got)
	}
	// Two-sided p is symmetric in the sign of t.
	if p, n := studentTPValue(1.5, 12), studentTPValue(-1.5, 12); math.Abs(p-n) > 1e-14 {
		t.Errorf("asymmetric p-values: %v vs %v", p, n)
	}
	if !math.IsNaN(studentTPValue(1, 0)) {
		t.Error("df=0 should yield NaN")
	}
}

func TestRegIncompleteBetaBounds(t *testing.T) {
	if got := regIncompleteBeta(2, 3, 0); got != 0 {
		t.Errorf("I_0 = %v, want 0", got)
	}
	if got := regIncompleteBeta(2, 3, 1); got != 1 {
		t.Errorf("I_1 = %v, want 1", got)
	}
	// I_x(1, 1) is the uniform CDF.
	if got := regIncompleteBeta(1, 1, 0.3); math.Abs(got-0.3) > 1e-12 {
		t.Errorf("I_0.3(1,1) = %v, want 0.3", got)
	}
	// I_x(1, b) = 1 - (1-x)^b.
	want := 1 - math.Pow(0.75, 4)
	if got := regIncompleteBeta(1, 4, 0.25); math.Abs(got-want) > 1e-12 {
		t.Errorf("I_0.25(1,4) = %v, want %v", got, want)
	}
}
