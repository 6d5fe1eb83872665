// Package egp is the public entry point to the portfolio toolkit: load a
// configuration, backtest the EGP allocation over historical prices, rank
// the current universe, and read back saved runs, without importing the
// internal packages directly.
package egp

import (
	"context"
	"log/slog"

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/backtest"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/config"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/domain"
	egpopt "github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/egp"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/engine"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/factor"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/portfolio"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/store"
)

// Re-exported types so consumers work with one import.
type (
	Config         = config.Config
	Result         = backtest.Result
	Metrics        = backtest.Metrics
	RebalanceEvent = portfolio.RebalanceEvent
	Trade          = portfolio.Trade
	Warning        = domain.Warning
	WarningCode    = domain.WarningCode
	Ranking        = engine.RankOutcome
	Holding        = egpopt.Holding
	PortfolioStats = egpopt.Stats
	FactorParams   = factor.Params
	RunRecord      = store.RunRecord
	RunSummary     = store.RunSummary
)

// LoadConfig reads the YAML configuration at path, applies defaults and
// environment overrides, and validates it.
func LoadConfig(path string) (*Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Options controls one Run call.
type Options struct {
	// Save persists the finished run into the SQLite store at the
	// configured path.
	Save bool
	// Logger receives pipeline progress; slog.Default() when nil.
	Logger *slog.Logger
}

// RankOptions controls one Rank call.
type RankOptions struct {
	// Logger receives pipeline progress; slog.Default() when nil.
	Logger *slog.Logger
}

// RunResult couples a backtest result with its persistence identity.
// RunID is zero when the run was not saved.
type RunResult struct {
	*Result
	RunID int64
}

// Run backtests the configured allocator over the configured price data.
func Run(ctx context.Context, cfg *Config, opts Options) (*RunResult, error) {
	var runs store.RunStore
	if opts.Save {
		s, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		runs = s
	}

	eng, err := engine.New(cfg, barStore(cfg), runs, opts.Logger)
	if err != nil {
		return nil, err
	}
	out, err := eng.RunBacktest(ctx)
	if err != nil {
		return nil, err
	}
	return &RunResult{Result: out.Result, RunID: out.RunID}, nil
}

// Rank fits the model on the most recent estimation window and returns the
// EGP ranking with portfolio statistics.
func Rank(ctx context.Context, cfg *Config, opts RankOptions) (*Ranking, error) {
	eng, err := engine.New(cfg, barStore(cfg), nil, opts.Logger)
	if err != nil {
		return nil, err
	}
	return eng.Rank(ctx)
}

// ListRuns returns summaries of saved runs, newest first. A non-positive
// limit returns all runs.
func ListRuns(ctx context.Context, cfg *Config, limit int) ([]RunSummary, error) {
	s, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.ListRuns(ctx, limit)
}

// GetRun retrieves one saved run by ID.
func GetRun(ctx context.Context, cfg *Config, id int64) (*RunRecord, error) {
	s, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.GetRun(ctx, id)
}

// barStore returns the parquet-backed bar store, or nil when prices come
// from a CSV file and no store is needed.
func barStore(cfg *Config) store.BarStore {
	if cfg.Data.CSVPath != "" {
		return nil
	}
	return store.NewParquetStore(cfg.Storage.DataDir)
}
