// Package factor fits the single-index market model: each asset's returns
// are regressed on one common factor, yielding the alpha, beta, and residual
// variance that drive the EGP ranking.
package factor

import (
	"math"
	"time"

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/domain"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/series"
)

const (
	// minObservations is the smallest paired sample an asset may be fit on.
	minObservations = 10
	// lowConfidenceObs is the sample size below which a fit is kept but
	// flagged as low confidence.
	lowConfidenceObs = 30
)

// Params holds the regression estimates for one asset.
type Params struct {
	Alpha            float64
	Beta             float64
	ResidualVariance float64
	RSquared         float64
	BetaStdErr       float64
	TStat            float64
	PValue           float64
	Observations     int
}

// MarketStats summarizes the factor series over the fit window.
type MarketStats struct {
	Mean     float64
	Variance float64
}

// Estimator fits the single-index model for a set of assets against one
// factor series. Zero value is not usable; construct with NewEstimator.
// Fit may be called repeatedly; each call replaces the previous state.
type Estimator struct {
	params   map[string]Params
	market   MarketStats
	skipped  []string
	warnings []domain.Warning
	fitted   bool
}

func NewEstimator() *Estimator {
	return &Estimator{}
}

// Fit regresses every column of assets on the factor series. The factor must
// have exactly one value per frame row. Assets with too few usable paired
// observations, or with a constant factor sample, are skipped and recorded
// as warnings rather than failing the fit.
func (e *Estimator) Fit(assets *series.Frame, factor []float64) error {
	if len(factor) != assets.Len() {
		return domain.Validationf("factor has %d values for %d asset rows", len(factor), assets.Len())
	}

	e.params = make(map[string]Params, len(assets.Symbols()))
	e.skipped = nil
	e.warnings = nil

	finite := make([]float64, 0, len(factor))
	for _, v := range factor {
		if isFinite(v) {
			finite = append(finite, v)
		}
	}
	e.market = MarketStats{Mean: mean(finite), Variance: sampleVariance(finite)}

	for _, sym := range assets.Symbols() {
		col, _ := assets.Column(sym)
		p, ok, warn := fitAsset(sym, factor, col)
		if warn != nil {
			e.warnings = append(e.warnings, *warn)
		}
		if !ok {
			e.skipped = append(e.skipped, sym)
			continue
		}
		e.params[sym] = p
	}

	e.fitted = true
	return nil
}

// fitAsset runs one OLS fit over the paired finite observations. It returns
// ok=false when the asset cannot be fit, with a warning describing why.
func fitAsset(sym string, factor, col []float64) (Params, bool, *domain.Warning) {
	var x, y []float64
	for i := range col {
		if isFinite(factor[i]) && isFinite(col[i]) {
			x = append(x, factor[i])
			y = append(y, col[i])
		}
	}
	n := len(x)
	if n < minObservations {
		w := domain.Warnf(domain.WarnUnfitAsset, time.Time{}, sym,
			"only %d usable observations, need %d", n, minObservations)
		return Params{}, false, &w
	}

	var sx, sy, sxx, sxy float64
	for i := 0; i < n; i++ {
		sx += x[i]
		sy += y[i]
		sxx += x[i] * x[i]
		sxy += x[i] * y[i]
	}
	fn := float64(n)
	det := fn*sxx - sx*sx
	if det <= 0 {
		w := domain.Warnf(domain.WarnUnfitAsset, time.Time{}, sym,
			"factor series is constant over the fit window")
		return Params{}, false, &w
	}

	beta := (fn*sxy - sx*sy) / det
	alpha := sy/fn - beta*sx/fn

	var sse float64
	for i := 0; i < n; i++ {
		e := y[i] - alpha - beta*x[i]
		sse += e * e
	}
	residVar := sse / float64(n-2)

	// det/n is the centered sum of squares of the regressor.
	ssxx := det / fn
	se := math.Sqrt(residVar / ssxx)
	tstat := 0.0
	if se > 0 {
		tstat = beta / se
	}

	p := Params{
		Alpha:            alpha,
		Beta:             beta,
		ResidualVariance: residVar,
		RSquared:         correlation(x, y) * correlation(x, y),
		BetaStdErr:       se,
		TStat:            tstat,
		PValue:           studentTPValue(tstat, n-2),
		Observations:     n,
	}

	if n < lowConfidenceObs {
		w := domain.Warnf(domain.WarnLowConfidence, time.Time{}, sym,
			"fit on %d observations, fewer than %d", n, lowConfidenceObs)
		return p, true, &w
	}
	return p, true, nil
}

// Params returns a copy of the per-asset estimates.
func (e *Estimator) Params() (map[string]Params, error) {
	if !e.fitted {
		return nil, domain.Statef("model parameters requested before fit")
	}
	out := make(map[string]Params, len(e.params))
	for sym, p := range e.params {
		out[sym] = p
	}
	return out, nil
}

// ExpectedReturns projects each fitted asset one period ahead:
// alpha + beta * mean factor return over the fit window.
func (e *Estimator) ExpectedReturns() (map[string]float64, error) {
	if !e.fitted {
		return nil, domain.Statef("expected returns requested before fit")
	}
	out := make(map[string]float64, len(e.params))
	for sym, p := range e.params {
		out[sym] = p.Alpha + p.Beta*e.market.Mean
	}
	return out, nil
}

// Betas returns the fitted beta per asset.
func (e *Estimator) Betas() (map[string]float64, error) {
	if !e.fitted {
		return nil, domain.Statef("betas requested before fit")
	}
	out := make(map[string]float64, len(e.params))
	for sym, p := range e.params {
		out[sym] = p.Beta
	}
	return out, nil
}

// ResidualVariances returns the residual variance per asset.
func (e *Estimator) ResidualVariances() (map[string]float64, error) {
	if !e.fitted {
		return nil, domain.Statef("residual variances requested before fit")
	}
	out := make(map[string]float64, len(e.params))
	for sym, p := range e.params {
		out[sym] = p.ResidualVariance
	}
	return out, nil
}

// Market returns the factor mean and sample variance over the fit window.
func (e *Estimator) Market() (MarketStats, error) {
	if !e.fitted {
		return MarketStats{}, domain.Statef("market statistics requested before fit")
	}
	return e.market, nil
}

// Skipped returns the symbols dropped during the last fit, in sorted order.
func (e *Estimator) Skipped() []string { return e.skipped }

// Warnings returns the non-fatal events recorded during the last fit.
func (e *Estimator) Warnings() []domain.Warning { return e.warnings }
