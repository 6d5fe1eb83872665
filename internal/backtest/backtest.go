// Package backtest replays an allocation strategy over a historical return
// series: it rebalances a whole-share ledger on calendar period ends,
// degrades to equal weights when estimation is impossible, and reports
// performance metrics for the portfolio and an optional benchmark.
package backtest

import (
	"context"
	"log/slog"
	"time"

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/domain"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/portfolio"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/series"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/strategy"
)

// minWindowObservations is the shortest estimation window the allocator is
// given; shorter windows fall back to equal weights for that date.
const minWindowObservations = 30

// Config controls one backtest run.
type Config struct {
	// EstimationWindow is the trailing number of return observations handed
	// to the allocator at each rebalance.
	EstimationWindow int
	// RebalanceFrequency picks the calendar period ends that trigger
	// rebalancing.
	RebalanceFrequency domain.RebalanceFrequency
	// DataFrequency is the sampling frequency of the input series; it sets
	// the annualization factor and scales the risk-free rate.
	DataFrequency domain.SampleFrequency
	// InitialCapital is the starting cash.
	InitialCapital float64
	// TransactionCost is the proportional cost rate charged on traded
	// notional.
	TransactionCost float64
	// AnnualRiskFree is the annual risk-free rate; it is divided by the
	// periods per year for per-period use.
	AnnualRiskFree float64
	// Benchmark enables the buy-and-hold factor comparison series.
	Benchmark bool
	// Workers above 1 precomputes rebalance allocations concurrently. The
	// allocator must be safe for concurrent use; results are identical to a
	// sequential run.
	Workers int
}

// Metrics summarizes a value path.
type Metrics struct {
	TotalReturn          float64
	AnnualizedReturn     float64
	AnnualizedVolatility float64
	SharpeRatio          float64
	MaxDrawdown          float64
	WinRate              float64
}

// Result is the full outcome of a run.
type Result struct {
	Dates        []time.Time
	Values       []float64
	Returns      []float64
	Events       []portfolio.RebalanceEvent
	FinalWeights map[string]float64
	Holdings     map[string]int64

	Metrics         Metrics
	Benchmark       *Metrics
	BenchmarkValues []float64

	Warnings   []domain.Warning
	Rebalances int
	Fallbacks  int
	TotalCost  float64
}

// Backtest holds the validated inputs for one run. The four series must
// share one date index: asset returns, factor returns, asset prices, and
// factor prices, all aligned row by row.
type Backtest struct {
	cfg           Config
	assetReturns  *series.Frame
	factorReturns []float64
	prices        *series.Frame
	factorPrices  []float64
	alloc         strategy.Allocator
	log           *slog.Logger
}

// New validates the configuration and the alignment of the input series.
func New(cfg Config, assetReturns *series.Frame, factorReturns []float64,
	prices *series.Frame, factorPrices []float64, alloc strategy.Allocator,
	log *slog.Logger) (*Backtest, error) {

	if cfg.EstimationWindow < 2 {
		return nil, domain.Validationf("estimation window must be at least 2, got %d", cfg.EstimationWindow)
	}
	if !cfg.RebalanceFrequency.Valid() {
		return nil, domain.Validationf("unknown rebalance frequency %q", cfg.RebalanceFrequency)
	}
	if !cfg.DataFrequency.Valid() {
		return nil, domain.Validationf("unknown data frequency %q", cfg.DataFrequency)
	}
	if !(cfg.InitialCapital > 0) {
		return nil, domain.Validationf("initial capital must be positive, got %g", cfg.InitialCapital)
	}
	if cfg.TransactionCost < 0 {
		return nil, domain.Validationf("transaction cost must be non-negative, got %g", cfg.TransactionCost)
	}
	if alloc == nil {
		return nil, domain.Validationf("allocator is required")
	}

	n := assetReturns.Len()
	if n == 0 {
		return nil, domain.Validationf("no return observations")
	}
	if len(assetReturns.Symbols()) == 0 {
		return nil, domain.Validationf("no assets in return series")
	}
	if len(factorReturns) != n {
		return nil, domain.Validationf("factor returns have %d values for %d dates", len(factorReturns), n)
	}
	if len(factorPrices) != n {
		return nil, domain.Validationf("factor prices have %d values for %d dates", len(factorPrices), n)
	}
	if prices.Len() != n {
		return nil, domain.Validationf("prices have %d rows for %d return dates", prices.Len(), n)
	}
	for i, d := range assetReturns.Dates() {
		if !prices.Dates()[i].Equal(d) {
			return nil, domain.Validationf("price dates diverge from return dates at row %d", i)
		}
	}
	for _, sym := range assetReturns.Symbols() {
		if _, ok := prices.Column(sym); !ok {
			return nil, domain.Validationf("no price column for asset %s", sym)
		}
	}

	if log == nil {
		log = slog.Default()
	}
	return &Backtest{
		cfg:           cfg,
		assetReturns:  assetReturns,
		factorReturns: factorReturns,
		prices:        prices,
		factorPrices:  factorPrices,
		alloc:         alloc,
		log:           log.With("component", "backtest"),
	}, nil
}

// Run replays the strategy over the full date range. It stops early only on
// context cancellation; allocation failures degrade to equal weights and
// are recorded as warnings.
func (b *Backtest) Run(ctx context.Context) (*Result, error) {
	dates := b.assetReturns.Dates()
	ppy := b.cfg.DataFrequency.PeriodsPerYear()
	periodRF := b.cfg.AnnualRiskFree / ppy

	// 1. Mark the calendar period ends present in the data. Boundaries that
	// fall on missing dates are skipped, not shifted. The first date always
	// rebalances to establish the initial allocation.
	scheduled := scheduleSet(dates, b.cfg.RebalanceFrequency)

	// 2. Optionally precompute allocations for all rebalance dates.
	var precomputed map[int]*allocation
	if b.cfg.Workers > 1 {
		indexes := []int{0}
		for i := 1; i < len(dates); i++ {
			if scheduled[i] {
				indexes = append(indexes, i)
			}
		}
		var err error
		precomputed, err = b.precompute(ctx, indexes)
		if err != nil {
			return nil, err
		}
	}

	// 3. Replay date by date through the ledger.
	ledger, err := portfolio.NewLedger(b.cfg.InitialCapital, b.cfg.TransactionCost)
	if err != nil {
		return nil, err
	}

	res := &Result{Dates: dates}
	rebalanced := false
	for i, date := range dates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if scheduled[i] || !rebalanced {
			a := precomputed[i]
			if a == nil {
				a = b.allocate(ctx, i)
			}
			res.Warnings = append(res.Warnings, a.warnings...)
			if a.fallback {
				res.Fallbacks++
			}
			prices := b.prices.Row(i)
			ev := ledger.Rebalance(date, a.weights, prices)
			for _, sym := range ev.Skipped {
				res.Warnings = append(res.Warnings,
					domain.Warnf(domain.WarnMissingPrice, date, sym, "no usable price at rebalance"))
			}
			res.FinalWeights = a.weights
			res.Rebalances++
			rebalanced = true
			b.log.Debug("rebalanced", "date", date.Format("2006-01-02"),
				"trades", len(ev.Trades), "value", ev.ValueAfter)
		}
		ledger.RecordState(date, b.prices.Row(i))
	}

	// 4. Performance metrics over the recorded value path.
	history := ledger.History()
	res.Values = make([]float64, len(history))
	for i, rec := range history {
		res.Values[i] = rec.Value
	}
	res.Returns = periodReturns(res.Values)
	res.Events = ledger.Events()
	res.Holdings = ledger.Holdings()
	res.TotalCost = ledger.TotalCost()
	res.Metrics = computeMetrics(dates, res.Values, b.cfg.InitialCapital, periodRF, ppy)

	// 5. Buy-and-hold factor benchmark from the same starting capital.
	if b.cfg.Benchmark {
		base := b.factorPrices[0]
		if usable(base) {
			bench := make([]float64, len(dates))
			for i, p := range b.factorPrices {
				if usable(p) {
					bench[i] = b.cfg.InitialCapital * p / base
				} else if i > 0 {
					bench[i] = bench[i-1]
				} else {
					bench[i] = b.cfg.InitialCapital
				}
			}
			m := computeMetrics(dates, bench, b.cfg.InitialCapital, periodRF, ppy)
			res.Benchmark = &m
			res.BenchmarkValues = bench
		} else {
			res.Warnings = append(res.Warnings,
				domain.Warnf(domain.WarnDataGap, dates[0], "", "benchmark factor has no usable starting price"))
		}
	}

	b.log.Info("backtest complete",
		"dates", len(dates),
		"rebalances", res.Rebalances,
		"fallbacks", res.Fallbacks,
		"total_return", res.Metrics.TotalReturn)
	return res, nil
}

// allocation is the outcome of resolving weights for one rebalance date.
type allocation struct {
	weights  map[string]float64
	warnings []domain.Warning
	fallback bool
}

// allocate resolves the target weights for row i: the trailing estimation
// window feeds the allocator, and any failure or undersized window falls
// back to equal weights for this date only.
func (b *Backtest) allocate(ctx context.Context, i int) *allocation {
	date := b.assetReturns.Dates()[i]

	n := i + 1
	if n > b.cfg.EstimationWindow {
		n = b.cfg.EstimationWindow
	}
	if n < minWindowObservations {
		return &allocation{
			weights:  b.equalWeights(),
			fallback: true,
			warnings: []domain.Warning{domain.Warnf(domain.WarnInsufficientWindow, date, "",
				"window has %d observations, need %d", n, minWindowObservations)},
		}
	}

	window, err := b.assetReturns.Window(i, n)
	if err != nil {
		// Unreachable given the bounds above, but degrade rather than panic.
		return &allocation{
			weights:  b.equalWeights(),
			fallback: true,
			warnings: []domain.Warning{domain.Warnf(domain.WarnFallback, date, "", "window: %v", err)},
		}
	}
	factorWin := b.factorReturns[i+1-n : i+1]

	weights, warns, err := b.alloc.Allocate(ctx, window, factorWin)
	for j := range warns {
		if warns[j].Date.IsZero() {
			warns[j].Date = date
		}
	}
	if err != nil {
		warns = append(warns, domain.Warnf(domain.WarnFallback, date, "",
			"allocation failed: %v", err))
		return &allocation{weights: b.equalWeights(), warnings: warns, fallback: true}
	}
	return &allocation{weights: weights, warnings: warns}
}

func (b *Backtest) equalWeights() map[string]float64 {
	symbols := b.assetReturns.Symbols()
	w := 1 / float64(len(symbols))
	weights := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		weights[sym] = w
	}
	return weights
}
