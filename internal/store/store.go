// Package store persists the pipeline's durable artifacts: OHLCV bars as
// Parquet files on disk, and backtest run records in SQLite.
package store

import (
	"context"
	"time"

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/domain"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/portfolio"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars under the given market.
	WriteBars(ctx context.Context, market domain.Market, bars []domain.Bar) error

	// ReadBars returns bars for the given market and symbol within
	// [start, end], ordered by timestamp. A zero start or end leaves that
	// side of the range open.
	ReadBars(ctx context.Context, market domain.Market, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market domain.Market) ([]string, error)
}

// RunRecord is one persisted backtest run: identity, the configuration
// snapshot it ran under, its headline metrics, and the final weights and
// rebalance events it produced.
type RunRecord struct {
	ID        int64
	CreatedAt time.Time
	Allocator string
	StartDate time.Time
	EndDate   time.Time

	// Config is a JSON snapshot of the configuration the run used.
	Config string

	TotalReturn          float64
	AnnualizedReturn     float64
	AnnualizedVolatility float64
	SharpeRatio          float64
	MaxDrawdown          float64
	WinRate              float64

	Rebalances int
	Fallbacks  int

	Weights map[string]float64
	Events  []portfolio.RebalanceEvent
}

// RunSummary is the listing projection of a run.
type RunSummary struct {
	ID          int64
	CreatedAt   time.Time
	Allocator   string
	StartDate   time.Time
	EndDate     time.Time
	TotalReturn float64
	SharpeRatio float64
}

// RunStore persists and retrieves backtest run records.
type RunStore interface {
	// SaveRun persists the record and returns its assigned ID.
	SaveRun(ctx context.Context, rec *RunRecord) (int64, error)

	// GetRun retrieves a single run by its ID.
	GetRun(ctx context.Context, id int64) (*RunRecord, error)

	// ListRuns returns summaries of the most recent runs, newest first.
	// A non-positive limit returns all runs.
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
}
