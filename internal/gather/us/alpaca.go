// Package us gathers US equity market data from the Alpaca APIs.
package us

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/domain"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/gather"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/store"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/util"
)

// Compile-time interface check.
var _ gather.Gatherer = (*DailyBarGatherer)(nil)

// Config holds the parameters for a DailyBarGatherer.
type Config struct {
	APIKey    string
	APISecret string
	DataURL   string // market-data API endpoint
	BaseURL   string // trading API endpoint, used for the calendar

	DataDir   string // root of the bar store layout, for progress files
	Symbols   []string
	StartDate string // YYYY-MM-DD

	BatchSize       int
	MaxWorkers      int
	RateLimitPerMin int
}

// DailyBarGatherer fetches daily OHLCV bars for a configured symbol universe
// via the Alpaca market-data API and writes them to the bar store. Runs are
// idempotent per trading day and resumable after a crash.
type DailyBarGatherer struct {
	cfg     Config
	client  *marketdata.Client
	store   store.BarStore
	limiter *util.RateLimiter
	log     *slog.Logger
}

// NewDailyBarGatherer creates a DailyBarGatherer for the given configuration
// and target store.
func NewDailyBarGatherer(cfg Config, s store.BarStore) *DailyBarGatherer {
	opts := marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.DataURL != "" {
		opts.BaseURL = cfg.DataURL
	}

	return &DailyBarGatherer{
		cfg:     cfg,
		client:  marketdata.NewClient(opts),
		store:   s,
		limiter: util.NewRateLimiter(cfg.RateLimitPerMin),
		log:     slog.Default().With("gatherer", "us-daily"),
	}
}

// Name returns the gatherer identifier.
func (g *DailyBarGatherer) Name() string { return "us-daily" }

// Run fetches daily bars for the configured universe from the start date
// through the latest finished trading day. A day already marked complete is
// a no-op; an interrupted run resumes, skipping symbols known to be empty.
func (g *DailyBarGatherer) Run(ctx context.Context) error {
	start, err := time.Parse("2006-01-02", g.cfg.StartDate)
	if err != nil {
		return fmt.Errorf("parsing start date %q: %w", g.cfg.StartDate, err)
	}

	// 1. Determine the end date from the trading calendar.
	endDate, err := g.latestFinishedTradingDay()
	if err != nil {
		return fmt.Errorf("determining end date: %w", err)
	}
	endDateStr := endDate.Format("2006-01-02")

	// 2. Set up the progress tracker next to the bar files.
	dailyDir := filepath.Join(g.cfg.DataDir, string(domain.MarketUS), "daily")
	tracker, err := newProgressTracker(dailyDir)
	if err != nil {
		return fmt.Errorf("creating progress tracker: %w", err)
	}
	defer tracker.Close()

	// 3. Idempotency: nothing to do if this day is already complete.
	if tracker.IsCompleted(endDateStr) {
		g.log.Info("already completed", "endDate", endDateStr)
		return nil
	}

	// 4. New day vs resume. A tried-empty set from an earlier day is stale:
	// symbols that listed since then deserve another attempt.
	lastCompleted := tracker.LastCompleted()
	if lastCompleted != "" && lastCompleted != endDateStr {
		if err := tracker.Reset(); err != nil {
			return fmt.Errorf("resetting tracker: %w", err)
		}
	}

	// 5. Normalize the universe and drop symbols known to have no data.
	universe := normalizeSymbols(g.cfg.Symbols)
	var remaining []string
	for _, sym := range universe {
		if tracker.IsTriedEmpty(sym) {
			continue
		}
		remaining = append(remaining, sym)
	}

	batchSize := g.cfg.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}
	batches := splitBatches(remaining, batchSize)

	g.log.Info("starting us-daily",
		"endDate", endDateStr,
		"universe", len(universe),
		"remaining", len(remaining),
		"triedEmpty", tracker.TriedEmptyCount(),
		"batches", len(batches),
	)

	if len(remaining) == 0 {
		if err := tracker.MarkCompleted(endDateStr); err != nil {
			return fmt.Errorf("marking completed: %w", err)
		}
		g.log.Info("no remaining symbols to process")
		return nil
	}

	// 6. Feed batches to the worker pool.
	batchCh := make(chan int, len(batches))
	for i := range batches {
		batchCh <- i
	}
	close(batchCh)

	var (
		wg        sync.WaitGroup
		totalHits atomic.Int64
		totalMiss atomic.Int64
		failures  atomic.Int64
		runStart  = time.Now()
	)

	workers := min(g.cfg.MaxWorkers, len(batches))
	if workers < 1 {
		workers = 1
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batchIdx := range batchCh {
				if ctx.Err() != nil {
					return
				}

				batch := batches[batchIdx]
				bars, err := g.fetchMultiBars(ctx, batch, start, endDate)
				if err != nil {
					failures.Add(1)
					g.log.Error("batch fetch failed",
						"batch", fmt.Sprintf("%d/%d", batchIdx+1, len(batches)),
						"err", err,
					)
					continue
				}

				// Determine hits and misses.
				hitSymbols := make(map[string]struct{})
				for _, b := range bars {
					hitSymbols[b.Symbol] = struct{}{}
				}
				var emptySymbols []string
				for _, sym := range batch {
					if _, hit := hitSymbols[sym]; !hit {
						emptySymbols = append(emptySymbols, sym)
					}
				}

				if len(bars) > 0 {
					if err := g.store.WriteBars(ctx, domain.MarketUS, bars); err != nil {
						failures.Add(1)
						g.log.Error("writing bars failed", "err", err)
						continue
					}
				}

				if len(emptySymbols) > 0 {
					if err := tracker.MarkEmpty(emptySymbols); err != nil {
						g.log.Error("marking empty failed", "err", err)
					}
				}

				totalHits.Add(int64(len(hitSymbols)))
				totalMiss.Add(int64(len(emptySymbols)))

				g.log.Info("batch done",
					"batch", fmt.Sprintf("%d/%d", batchIdx+1, len(batches)),
					"hits", len(hitSymbols),
					"empty", len(emptySymbols),
					"elapsed", time.Since(runStart).Round(time.Second),
				)
			}
		}()
	}

	wg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	// 7. Only a clean pass marks the day complete, so failed batches are
	// retried by the next invocation.
	if n := failures.Load(); n > 0 {
		return fmt.Errorf("%d batches failed; run again to retry", n)
	}
	if err := tracker.MarkCompleted(endDateStr); err != nil {
		return fmt.Errorf("marking completed: %w", err)
	}

	g.log.Info("complete",
		"hits", totalHits.Load(),
		"empty", totalMiss.Load(),
		"elapsed", time.Since(runStart).Round(time.Second),
	)
	return nil
}

// fetchMultiBars fetches daily bars for one batch of symbols, pacing calls
// with the rate limiter and retrying transient failures.
func (g *DailyBarGatherer) fetchMultiBars(ctx context.Context, symbols []string, start, end time.Time) ([]domain.Bar, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	multiBars, err := util.Retry(ctx, 3, 2*time.Second, func() (map[string][]marketdata.Bar, error) {
		return g.client.GetMultiBars(symbols, marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     start,
			End:       end,
			Feed:      "sip",
		})
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	var bars []domain.Bar
	for symbol, alpacaBars := range multiBars {
		for _, ab := range alpacaBars {
			bars = append(bars, domain.Bar{
				Symbol:     strings.ToUpper(symbol),
				Timestamp:  ab.Timestamp,
				Open:       ab.Open,
				High:       ab.High,
				Low:        ab.Low,
				Close:      ab.Close,
				Volume:     int64(ab.Volume),
				TradeCount: int64(ab.TradeCount),
				VWAP:       ab.VWAP,
			})
		}
	}
	return bars, nil
}

// normalizeSymbols uppercases, trims, dedupes, and sorts the universe.
func normalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// splitBatches cuts symbols into consecutive slices of at most size.
func splitBatches(symbols []string, size int) [][]string {
	var batches [][]string
	for i := 0; i < len(symbols); i += size {
		batches = append(batches, symbols[i:min(i+size, len(symbols))])
	}
	return batches
}
