package egp

import (
	"math"
	"sort"

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/domain"
)

// Stats summarizes the optimized portfolio under the single-index model.
type Stats struct {
	ExpectedReturn float64
	Beta           float64
	Variance       float64
	StdDev         float64
	Sharpe         float64
}

// Holding pairs a symbol with its optimized weight.
type Holding struct {
	Symbol string
	Weight float64
}

// PortfolioStatistics computes the expected return, beta, single-index
// variance and Sharpe ratio of the optimized weights. It requires a prior
// successful Optimize call.
func (o *Optimizer) PortfolioStatistics() (Stats, error) {
	if o.result == nil {
		return Stats{}, domain.Statef("portfolio statistics requested before optimize")
	}

	var ret, beta, resid float64
	for i, sym := range o.symbols {
		w := o.result.Weights[sym]
		ret += w * o.expRet[i]
		beta += w * o.beta[i]
		resid += w * w * o.resVar[i]
	}
	variance := beta*beta*o.marketVar + resid
	std := math.Sqrt(variance)
	sharpe := 0.0
	if std > 0 {
		sharpe = (ret - o.riskFree) / std
	}
	return Stats{
		ExpectedReturn: ret,
		Beta:           beta,
		Variance:       variance,
		StdDev:         std,
		Sharpe:         sharpe,
	}, nil
}

// TopHoldings returns up to n holdings ordered by absolute weight, largest
// first, with ties broken by symbol. It requires a prior successful
// Optimize call.
func (o *Optimizer) TopHoldings(n int) ([]Holding, error) {
	if o.result == nil {
		return nil, domain.Statef("top holdings requested before optimize")
	}
	if n <= 0 {
		return nil, nil
	}

	holdings := make([]Holding, 0, len(o.symbols))
	for _, sym := range o.symbols {
		holdings = append(holdings, Holding{Symbol: sym, Weight: o.result.Weights[sym]})
	}
	sort.Slice(holdings, func(i, j int) bool {
		ai, aj := math.Abs(holdings[i].Weight), math.Abs(holdings[j].Weight)
		if ai != aj {
			return ai > aj
		}
		return holdings[i].Symbol < holdings[j].Symbol
	})
	if n < len(holdings) {
		holdings = holdings[:n]
	}
	return holdings, nil
}
