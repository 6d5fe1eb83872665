package builtins

import (
	"context"
	"time"

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/domain"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/egp"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/factor"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/series"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Allocator = (*EGP)(nil)

// EGP chains the single-index fit and the Elton-Gruber-Padberg ranking: fit
// each window asset against the factor, then weight by Z-score above the
// cutoff rate.
type EGP struct {
	riskFree   float64
	allowShort bool
	maxWeight  float64
	minWeight  float64
}

// NewEGP creates the EGP allocator. riskFree is the per-period risk-free
// rate; maxWeight and minWeight are optional bounds, disabled at zero.
func NewEGP(riskFree float64, allowShort bool, maxWeight, minWeight float64) *EGP {
	return &EGP{
		riskFree:   riskFree,
		allowShort: allowShort,
		maxWeight:  maxWeight,
		minWeight:  minWeight,
	}
}

// Name returns "egp".
func (a *EGP) Name() string {
	return "egp"
}

// Allocate fits the single-index model on the window and runs the EGP
// optimization on the fitted assets. Estimator warnings pass through;
// degenerate rankings and non-converged projections add their own.
func (a *EGP) Allocate(_ context.Context, window *series.Frame, factorReturns []float64) (map[string]float64, []domain.Warning, error) {
	est := factor.NewEstimator()
	if err := est.Fit(window, factorReturns); err != nil {
		return nil, nil, err
	}
	warnings := est.Warnings()

	expRet, err := est.ExpectedReturns()
	if err != nil {
		return nil, warnings, err
	}
	betas, err := est.Betas()
	if err != nil {
		return nil, warnings, err
	}
	resVars, err := est.ResidualVariances()
	if err != nil {
		return nil, warnings, err
	}
	market, err := est.Market()
	if err != nil {
		return nil, warnings, err
	}

	opt, err := egp.New(egp.Inputs{
		ExpectedReturns:   expRet,
		Betas:             betas,
		ResidualVariances: resVars,
		MarketVariance:    market.Variance,
		RiskFreeRate:      a.riskFree,
	}, egp.Options{
		AllowShort: a.allowShort,
		MaxWeight:  a.maxWeight,
		MinWeight:  a.minWeight,
	})
	if err != nil {
		return nil, warnings, err
	}

	res, err := opt.Optimize()
	if err != nil {
		return nil, warnings, err
	}
	if res.Degenerate {
		warnings = append(warnings, domain.Warnf(domain.WarnDegenerateRanking, time.Time{}, "",
			"all ranking scores are zero, using equal weights"))
	}
	if !res.Converged {
		warnings = append(warnings, domain.Warnf(domain.WarnNotConverged, time.Time{}, "",
			"weight bounds not satisfied after %d passes", res.Passes))
	}
	return res.Weights, warnings, nil
}
