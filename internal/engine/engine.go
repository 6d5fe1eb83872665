// Package engine wires the pipeline end to end: configuration in, price
// frames from the bar store or a CSV file, returns through the registered
// allocator into the backtest, and the finished run into the run store.
package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/backtest"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/config"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/domain"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/egp"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/factor"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/feed"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/series"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/store"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/strategy"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/strategy/builtins"
)

// Engine runs backtests and one-shot rankings from a validated configuration.
// The bar store may be nil when prices come from a CSV file; the run store
// may be nil to skip persistence.
type Engine struct {
	cfg      *config.Config
	bars     store.BarStore
	runs     store.RunStore
	registry *strategy.Registry
	log      *slog.Logger
}

// RunOutcome bundles a finished backtest with its persistence identity.
// RunID is zero when the run was not saved.
type RunOutcome struct {
	Result *backtest.Result
	RunID  int64
}

// RankOutcome is a one-shot estimation and optimization over the most recent
// estimation window.
type RankOutcome struct {
	// AsOf is the date of the last return observation the fit used.
	AsOf time.Time
	// WindowSize is the number of return observations in the fit window.
	WindowSize int

	Weights  map[string]float64
	ZScores  map[string]float64
	C0       float64
	Stats    egp.Stats
	Holdings []egp.Holding
	Params   map[string]factor.Params
	Skipped  []string

	Warnings []domain.Warning
}

// New validates the configuration and builds an engine with the builtin
// allocators registered.
func New(cfg *config.Config, bars store.BarStore, runs store.RunStore, log *slog.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, domain.Validationf("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	registry := strategy.NewRegistry()
	registry.Register(builtins.NewEqualWeight())
	registry.Register(builtins.NewSMACross(10, 30))
	registry.Register(builtins.NewEGP(
		cfg.Backtest.RiskFreeRate/cfg.Data.Frequency.PeriodsPerYear(),
		cfg.Backtest.AllowShort,
		cfg.Backtest.MaxWeight,
		cfg.Backtest.MinWeight,
	))

	return &Engine{
		cfg:      cfg,
		bars:     bars,
		runs:     runs,
		registry: registry,
		log:      log.With("component", "engine"),
	}, nil
}

// Register adds an allocator beyond the builtins. Registering a name twice
// replaces the earlier allocator.
func (e *Engine) Register(a strategy.Allocator) {
	e.registry.Register(a)
}

// Allocators returns the registered allocator names in sorted order.
func (e *Engine) Allocators() []string {
	return e.registry.List()
}

// RunBacktest loads prices, computes returns, replays the configured
// allocator over them, and optionally persists the run. Data-load warnings
// precede backtest warnings in the result.
func (e *Engine) RunBacktest(ctx context.Context) (*RunOutcome, error) {
	// 1. Prices → aligned returns plus the factor series.
	inputs, warnings, err := e.prepare(ctx)
	if err != nil {
		return nil, err
	}

	// 2. Pre-run feasibility of the configured weight bounds.
	warnings = append(warnings, CheckWeightLimits(
		e.cfg.Backtest.MaxWeight, e.cfg.Backtest.MinWeight,
		len(inputs.assetReturns.Symbols()))...)

	// 3. Resolve the allocator and replay.
	alloc, ok := e.registry.Get(e.cfg.Backtest.Allocator)
	if !ok {
		return nil, domain.Validationf("unknown allocator %q (have %v)",
			e.cfg.Backtest.Allocator, e.registry.List())
	}

	bt, err := backtest.New(backtest.Config{
		EstimationWindow:   e.cfg.Backtest.EstimationWindow,
		RebalanceFrequency: e.cfg.Backtest.RebalanceFrequency,
		DataFrequency:      e.cfg.Data.Frequency,
		InitialCapital:     e.cfg.Backtest.InitialCapital,
		TransactionCost:    e.cfg.Backtest.TransactionCost,
		AnnualRiskFree:     e.cfg.Backtest.RiskFreeRate,
		Benchmark:          e.cfg.Backtest.Benchmark,
		Workers:            e.cfg.Backtest.Workers,
	}, inputs.assetReturns, inputs.factorReturns, inputs.prices, inputs.factorPrices, alloc, e.log)
	if err != nil {
		return nil, err
	}

	result, err := bt.Run(ctx)
	if err != nil {
		return nil, err
	}
	result.Warnings = append(warnings, result.Warnings...)

	e.log.Info("backtest finished",
		"allocator", alloc.Name(),
		"periods", len(result.Dates),
		"rebalances", result.Rebalances,
		"fallbacks", result.Fallbacks,
		"total_return", result.Metrics.TotalReturn,
		"sharpe", result.Metrics.SharpeRatio)

	// 4. Persist when a run store is attached.
	outcome := &RunOutcome{Result: result}
	if e.runs != nil {
		id, err := e.saveRun(ctx, alloc.Name(), result)
		if err != nil {
			return nil, err
		}
		outcome.RunID = id
		e.log.Info("run saved", "run_id", id)
	}
	return outcome, nil
}

// Rank fits the single-index model on the most recent estimation window and
// runs the ranking once, without replaying history.
func (e *Engine) Rank(ctx context.Context) (*RankOutcome, error) {
	inputs, warnings, err := e.prepare(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Trailing estimation window, shortened when history is thin.
	n := inputs.assetReturns.Len()
	length := e.cfg.Backtest.EstimationWindow
	if length > n {
		length = n
	}
	window, err := inputs.assetReturns.Window(n-1, length)
	if err != nil {
		return nil, err
	}
	factorWindow := inputs.factorReturns[n-length:]

	est := factor.NewEstimator()
	if err := est.Fit(window, factorWindow); err != nil {
		return nil, err
	}
	warnings = append(warnings, est.Warnings()...)

	expRet, err := est.ExpectedReturns()
	if err != nil {
		return nil, err
	}
	betas, err := est.Betas()
	if err != nil {
		return nil, err
	}
	resVars, err := est.ResidualVariances()
	if err != nil {
		return nil, err
	}
	market, err := est.Market()
	if err != nil {
		return nil, err
	}
	params, err := est.Params()
	if err != nil {
		return nil, err
	}

	periodRF := e.cfg.Backtest.RiskFreeRate / e.cfg.Data.Frequency.PeriodsPerYear()
	opt, err := egp.New(egp.Inputs{
		ExpectedReturns:   expRet,
		Betas:             betas,
		ResidualVariances: resVars,
		MarketVariance:    market.Variance,
		RiskFreeRate:      periodRF,
	}, egp.Options{
		AllowShort: e.cfg.Backtest.AllowShort,
		MaxWeight:  e.cfg.Backtest.MaxWeight,
		MinWeight:  e.cfg.Backtest.MinWeight,
	})
	if err != nil {
		return nil, err
	}
	res, err := opt.Optimize()
	if err != nil {
		return nil, err
	}

	asOf := window.Dates()[window.Len()-1]
	if res.Degenerate {
		warnings = append(warnings, domain.Warnf(domain.WarnDegenerateRanking, asOf, "",
			"all ranking scores are zero, using equal weights"))
	}
	if !res.Converged {
		warnings = append(warnings, domain.Warnf(domain.WarnNotConverged, asOf, "",
			"weight bounds not satisfied after %d passes", res.Passes))
	}
	warnings = append(warnings, CheckWeightLimits(
		e.cfg.Backtest.MaxWeight, e.cfg.Backtest.MinWeight, len(res.Weights))...)

	stats, err := opt.PortfolioStatistics()
	if err != nil {
		return nil, err
	}
	holdings, err := opt.TopHoldings(len(res.Weights))
	if err != nil {
		return nil, err
	}

	e.log.Info("ranking finished",
		"as_of", asOf.Format("2006-01-02"),
		"window", window.Len(),
		"assets", len(res.Weights),
		"skipped", len(est.Skipped()),
		"c0", res.C0)

	return &RankOutcome{
		AsOf:       asOf,
		WindowSize: window.Len(),
		Weights:    res.Weights,
		ZScores:    res.ZScores,
		C0:         res.C0,
		Stats:      stats,
		Holdings:   holdings,
		Params:     params,
		Skipped:    est.Skipped(),
		Warnings:   warnings,
	}, nil
}

// pipelineInputs is the aligned series set the backtest consumes: asset
// returns, the factor return column, and the matching price rows.
type pipelineInputs struct {
	assetReturns  *series.Frame
	factorReturns []float64
	prices        *series.Frame
	factorPrices  []float64
}

// prepare turns the configured data source into aligned return and price
// series with the factor column split out.
func (e *Engine) prepare(ctx context.Context) (*pipelineInputs, []domain.Warning, error) {
	var warnings []domain.Warning

	// 1. Raw prices from the CSV file or the bar store.
	prices, loadWarnings, err := e.loadPrices(ctx)
	if err != nil {
		return nil, nil, err
	}
	warnings = append(warnings, loadWarnings...)

	factorSym := e.cfg.Data.FactorSymbol
	if _, ok := prices.Column(factorSym); !ok {
		return nil, nil, domain.Validationf("factor symbol %s not in price data", factorSym)
	}
	if len(prices.Symbols()) < 2 {
		return nil, nil, domain.Validationf("need at least one asset besides factor %s", factorSym)
	}
	for sym, missing := range prices.MissingCounts() {
		if missing > 0 {
			e.log.Debug("price gaps before fill", "symbol", sym, "missing", missing)
		}
	}

	// 2. Resample to the configured frequency, fill gaps, and trim the
	// leading rows that no fill can reach.
	sampled, err := prices.Resample(e.cfg.Data.Frequency)
	if err != nil {
		return nil, nil, err
	}
	filled := sampled.ForwardFill().DropLeadingRows()
	if filled.Len() < 2 {
		return nil, nil, domain.Validationf("only %d complete price rows after alignment, need at least 2", filled.Len())
	}

	// 3. Prices → returns; split the factor column off both.
	var returns *series.Frame
	switch e.cfg.Data.ReturnMethod {
	case config.ReturnLog:
		returns = filled.LogReturns()
	default:
		returns = filled.SimpleReturns()
	}

	assetReturns := returns.Drop(factorSym)
	factorReturns, _ := returns.Column(factorSym)

	// Price rows aligned to return dates (prices drop their first row).
	alignedPrices, err := filled.Slice(1, filled.Len())
	if err != nil {
		return nil, nil, err
	}
	assetPrices := alignedPrices.Drop(factorSym)
	factorPrices, _ := alignedPrices.Column(factorSym)

	return &pipelineInputs{
		assetReturns:  assetReturns,
		factorReturns: factorReturns,
		prices:        assetPrices,
		factorPrices:  factorPrices,
	}, warnings, nil
}

// loadPrices reads the configured price source. Symbols that fail to load
// from the bar store become data-gap warnings rather than errors.
func (e *Engine) loadPrices(ctx context.Context) (*series.Frame, []domain.Warning, error) {
	if e.cfg.Data.CSVPath != "" {
		frame, err := feed.LoadCSV(e.cfg.Data.CSVPath)
		if err != nil {
			return nil, nil, err
		}
		// A configured symbol list narrows the CSV universe; otherwise every
		// column is an asset.
		if len(e.cfg.Data.Symbols) > 0 {
			frame, err = frame.Select(e.withFactor(e.cfg.Data.Symbols)...)
			if err != nil {
				return nil, nil, err
			}
		}
		e.log.Info("prices loaded",
			"source", e.cfg.Data.CSVPath,
			"symbols", len(frame.Symbols()),
			"rows", frame.Len())
		return frame, nil, nil
	}

	if e.bars == nil {
		return nil, nil, domain.Statef("no bar store attached and no csv_path configured")
	}

	frame, failed, err := feed.LoadPrices(ctx, e.bars, e.cfg.Data.Market,
		e.withFactor(e.cfg.Data.Symbols), e.cfg.Data.StartTime(), e.cfg.Data.EndTime())
	if err != nil {
		return nil, nil, err
	}

	var warnings []domain.Warning
	for _, sym := range failed {
		warnings = append(warnings, domain.Warnf(domain.WarnDataGap, time.Time{}, sym,
			"no bars loaded from store"))
	}
	e.log.Info("prices loaded",
		"source", "store",
		"symbols", len(frame.Symbols()),
		"failed", len(failed),
		"rows", frame.Len())
	return frame, warnings, nil
}

// saveRun snapshots the run into the run store. Credentials are cleared from
// the configuration snapshot before it is serialized.
func (e *Engine) saveRun(ctx context.Context, allocator string, result *backtest.Result) (int64, error) {
	snapshot := *e.cfg
	snapshot.Alpaca = config.Alpaca{}
	cfgJSON, err := json.Marshal(snapshot)
	if err != nil {
		return 0, err
	}

	rec := &store.RunRecord{
		Allocator:            allocator,
		Config:               string(cfgJSON),
		TotalReturn:          result.Metrics.TotalReturn,
		AnnualizedReturn:     result.Metrics.AnnualizedReturn,
		AnnualizedVolatility: result.Metrics.AnnualizedVolatility,
		SharpeRatio:          result.Metrics.SharpeRatio,
		MaxDrawdown:          result.Metrics.MaxDrawdown,
		WinRate:              result.Metrics.WinRate,
		Rebalances:           result.Rebalances,
		Fallbacks:            result.Fallbacks,
		Weights:              result.FinalWeights,
		Events:               result.Events,
	}
	if len(result.Dates) > 0 {
		rec.StartDate = result.Dates[0]
		rec.EndDate = result.Dates[len(result.Dates)-1]
	}
	return e.runs.SaveRun(ctx, rec)
}

// withFactor appends the factor symbol to a copy of symbols unless it is
// already listed.
func (e *Engine) withFactor(symbols []string) []string {
	for _, sym := range symbols {
		if sym == e.cfg.Data.FactorSymbol {
			return symbols
		}
	}
	return append(append([]string{}, symbols...), e.cfg.Data.FactorSymbol)
}
