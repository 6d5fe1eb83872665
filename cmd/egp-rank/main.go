// One-shot ranking: fits the single-index model on the most recent
// estimation window and prints the EGP weights, per-asset estimates, and
// portfolio statistics.
//
// Usage:
//
//	go run cmd/egp-rank/main.go [-top N]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/report"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/util"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/pkg/egp"
)

func main() {
	top := flag.Int("top", 0, "max holdings to print, 0 for all")
	maxWarnings := flag.Int("warnings", 10, "max warning detail lines to print, 0 for all")
	flag.Parse()

	cfgPath := "config/egp.yaml"
	if p := os.Getenv("EGP_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := egp.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLoggerTo(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ranking, err := egp.Rank(ctx, cfg, egp.RankOptions{Logger: logger})
	if err != nil {
		log.Fatalf("ranking failed: %v", err)
	}

	if *top > 0 && len(ranking.Holdings) > *top {
		ranking.Holdings = ranking.Holdings[:*top]
	}
	report.WriteRanking(os.Stdout, ranking)
	fmt.Println()
	report.WriteWarnings(os.Stdout, ranking.Warnings, *maxWarnings)
}
