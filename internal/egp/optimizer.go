// Package egp implements the Elton-Gruber-Padberg single-index portfolio
// construction: assets are ranked by excess return over residual risk, a
// cutoff rate C0 splits the investable set, and weights follow from the
// Z-scores above the cutoff.
package egp

import (
	"math"
	"sort"
	"strings"

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/domain"
)

// projectionPasses bounds the constraint projection loop.
const projectionPasses = 100

// projectionTol is the magnitude below which weight adjustments are treated
// as converged.
const projectionTol = 1e-12

// Inputs carries the per-asset estimates and market moments the ranking
// needs. Only symbols present in all three maps are candidates.
type Inputs struct {
	ExpectedReturns   map[string]float64
	Betas             map[string]float64
	ResidualVariances map[string]float64
	MarketVariance    float64
	RiskFreeRate      float64
}

// Options controls short sales and per-asset weight bounds. A zero bound
// disables that constraint.
type Options struct {
	AllowShort bool
	MaxWeight  float64
	MinWeight  float64
}

// Result is the outcome of one optimization. Degenerate is set when every
// Z-score collapsed to zero and weights fell back to equal allocation.
// Converged reports whether the constraint projection reached a fixed point
// within its pass budget; infeasible bounds leave it false.
type Result struct {
	Weights    map[string]float64
	ZScores    map[string]float64
	C0         float64
	Degenerate bool
	Converged  bool
	Passes     int
}

// Optimizer computes EGP weights for one snapshot of estimates. Construct
// with New, call Optimize, then query PortfolioStatistics or TopHoldings.
type Optimizer struct {
	symbols []string
	expRet  []float64
	beta    []float64
	resVar  []float64

	marketVar float64
	riskFree  float64
	opts      Options

	result *Result
}

// New validates the inputs and fixes the candidate set: the sorted
// intersection of the symbols present in all three estimate maps.
func New(in Inputs, opts Options) (*Optimizer, error) {
	var symbols []string
	for sym := range in.ExpectedReturns {
		if _, ok := in.Betas[sym]; !ok {
			continue
		}
		if _, ok := in.ResidualVariances[sym]; !ok {
			continue
		}
		symbols = append(symbols, sym)
	}
	if len(symbols) == 0 {
		return nil, domain.Validationf("no common symbols found in inputs")
	}
	sort.Strings(symbols)

	var badVar []string
	for _, sym := range symbols {
		if !(in.ResidualVariances[sym] > 0) {
			badVar = append(badVar, sym)
		}
	}
	if len(badVar) > 0 {
		return nil, domain.Validationf("non-positive residual variance for: %s", strings.Join(badVar, ", "))
	}
	if !(in.MarketVariance > 0) {
		return nil, domain.Validationf("market variance must be positive, got %g", in.MarketVariance)
	}
	if opts.MaxWeight < 0 || opts.MinWeight < 0 {
		return nil, domain.Validationf("weight bounds must be non-negative, got max %g min %g",
			opts.MaxWeight, opts.MinWeight)
	}

	o := &Optimizer{
		symbols:   symbols,
		expRet:    make([]float64, len(symbols)),
		beta:      make([]float64, len(symbols)),
		resVar:    make([]float64, len(symbols)),
		marketVar: in.MarketVariance,
		riskFree:  in.RiskFreeRate,
		opts:      opts,
	}
	for i, sym := range symbols {
		o.expRet[i] = in.ExpectedReturns[sym]
		o.beta[i] = in.Betas[sym]
		o.resVar[i] = in.ResidualVariances[sym]
	}
	return o, nil
}

// Optimize computes the cutoff rate and the normalized weight vector.
// The result is retained for the statistics accessors.
func (o *Optimizer) Optimize() (*Result, error) {
	n := len(o.symbols)

	// Cutoff rate over the full candidate set.
	var s, b float64
	for i := 0; i < n; i++ {
		excess := o.expRet[i] - o.riskFree
		s += excess * o.beta[i] / o.resVar[i]
		b += o.beta[i] * o.beta[i] / o.resVar[i]
	}
	den := 1 + o.marketVar*b
	if den == 0 {
		return nil, domain.Validationf("denominator is zero in C0 calculation")
	}
	c0 := o.marketVar * s / den

	z := make([]float64, n)
	var sumAbs float64
	for i := 0; i < n; i++ {
		z[i] = (o.expRet[i]-o.riskFree)/o.resVar[i] - o.beta[i]/o.resVar[i]*c0
		if !o.opts.AllowShort && z[i] < 0 {
			z[i] = 0
		}
		sumAbs += math.Abs(z[i])
	}

	res := &Result{C0: c0, Converged: true}
	w := make([]float64, n)
	if sumAbs == 0 {
		for i := range w {
			w[i] = 1 / float64(n)
		}
		res.Degenerate = true
	} else {
		for i := range w {
			w[i] = z[i] / sumAbs
		}
	}

	if o.opts.MaxWeight > 0 || o.opts.MinWeight > 0 {
		res.Converged, res.Passes = o.project(w)
	}

	// Exact unit leverage after projection.
	var total float64
	for _, v := range w {
		total += math.Abs(v)
	}
	if total > 0 {
		for i := range w {
			w[i] /= total
		}
	}

	res.Weights = make(map[string]float64, n)
	res.ZScores = make(map[string]float64, n)
	for i, sym := range o.symbols {
		res.Weights[sym] = w[i]
		res.ZScores[sym] = z[i]
	}
	o.result = res
	return res, nil
}

// project enforces the weight bounds in place with a bounded fixed-point
// iteration: clip above the cap and hand the excess proportionally to the
// remaining weight mass, then lift small positive weights to the floor and
// take the deficit proportionally from the mass above it. Returns whether a
// pass completed with no adjustment, and the number of passes run.
func (o *Optimizer) project(w []float64) (bool, int) {
	maxW, minW := o.opts.MaxWeight, o.opts.MinWeight
	for pass := 1; pass <= projectionPasses; pass++ {
		changed := false

		if maxW > 0 {
			var excess float64
			for i := range w {
				if w[i] > maxW+projectionTol {
					excess += w[i] - maxW
					w[i] = maxW
					changed = true
				}
			}
			if excess > projectionTol {
				var mass float64
				for i := range w {
					if w[i] < maxW-projectionTol {
						mass += w[i]
					}
				}
				if mass > projectionTol {
					for i := range w {
						if w[i] < maxW-projectionTol {
							w[i] += excess * w[i] / mass
						}
					}
				}
			}
		}

		if minW > 0 {
			var deficit float64
			for i := range w {
				if w[i] > projectionTol && w[i] < minW-projectionTol {
					deficit += minW - w[i]
					w[i] = minW
					changed = true
				}
			}
			if deficit > projectionTol {
				var mass float64
				for i := range w {
					if w[i] > minW+projectionTol {
						mass += w[i]
					}
				}
				if mass > projectionTol {
					for i := range w {
						if w[i] > minW+projectionTol {
							w[i] -= deficit * w[i] / mass
						}
					}
				}
			}
		}

		if !changed {
			return true, pass
		}
	}
	return false, projectionPasses
}
