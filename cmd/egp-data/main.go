// Daily bar gathering job: fetches the configured symbol universe from the
// Alpaca market-data API into the local parquet store, resuming where the
// last run left off. With no configured symbols it refreshes every symbol
// already in the store.
//
// Usage:
//
//	go run cmd/egp-data/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/config"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/domain"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/gather/us"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/store"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/util"
)

func main() {
	cfgPath := "config/egp.yaml"
	if p := os.Getenv("EGP_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	for _, err := range []error{cfg.Storage.Validate(), cfg.Logging.Validate(), cfg.Gather.Validate()} {
		if err != nil {
			log.Fatalf("invalid config: %v", err)
		}
	}
	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		log.Fatalf("alpaca credentials missing: set APCA_API_KEY_ID and APCA_API_SECRET_KEY")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bars := store.NewParquetStore(cfg.Storage.DataDir)

	// An empty data.symbols means refresh mode: re-gather whatever the store
	// already holds.
	symbols := cfg.Data.Symbols
	if cfg.Data.FactorSymbol != "" {
		symbols = append(symbols, cfg.Data.FactorSymbol)
	}
	if len(symbols) == 0 {
		stored, err := bars.ListSymbols(ctx, domain.MarketUS)
		if err != nil {
			log.Fatalf("listing stored symbols: %v", err)
		}
		symbols = stored
	}
	if len(symbols) == 0 {
		log.Fatalf("no symbols configured under data.symbols and none in the store")
	}

	// Dual logger: stdout + /tmp log file.
	logFileName := fmt.Sprintf("/tmp/egp-data-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.Create(logFileName)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	w := io.MultiWriter(os.Stdout, logFile)
	util.SetDefault(util.NewLoggerTo(w, cfg.Logging.Level, cfg.Logging.Format))

	gatherer := us.NewDailyBarGatherer(us.Config{
		APIKey:          cfg.Alpaca.APIKey,
		APISecret:       cfg.Alpaca.APISecret,
		DataURL:         cfg.Alpaca.DataURL,
		BaseURL:         cfg.Alpaca.BaseURL,
		DataDir:         cfg.Storage.DataDir,
		Symbols:         symbols,
		StartDate:       cfg.Gather.StartDate,
		BatchSize:       cfg.Gather.BatchSize,
		MaxWorkers:      cfg.Gather.MaxWorkers,
		RateLimitPerMin: cfg.Gather.RateLimitPerMin,
	}, bars)

	slog.Info("starting egp-data", "logFile", logFileName, "symbols", len(symbols))
	if err := gatherer.Run(ctx); err != nil {
		log.Fatalf("gather error: %v", err)
	}
}
