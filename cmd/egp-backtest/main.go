// Backtest runner: replays the configured allocator over historical prices
// and prints the performance summary, final holdings, rebalances, and
// warnings. Saved runs can be listed and inspected.
//
// Usage:
//
//	go run cmd/egp-backtest/main.go [-save] [-events N] [-warnings N]
//	go run cmd/egp-backtest/main.go -list
//	go run cmd/egp-backtest/main.go -show <id>
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
	save := flag.Bool("save", false, "persist the run into the sqlite store")
	list := flag.Bool("list", false, "list saved runs and exit")
	show := flag.Int64("show", 0, "print one saved run by id and exit")
	maxEvents := flag.Int("events", 12, "max rebalance events to print, 0 for all")
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

	// Progress goes to stderr so report output stays clean on stdout.
	logger := util.NewLoggerTo(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch {
	case *list:
		runs, err := egp.ListRuns(ctx, cfg, 20)
		if err != nil {
			log.Fatalf("failed to list runs: %v", err)
		}
		report.WriteRuns(os.Stdout, runs)

	case *show != 0:
		rec, err := egp.GetRun(ctx, cfg, *show)
		if err != nil {
			log.Fatalf("failed to load run %d: %v", *show, err)
		}
		printRun(rec, *maxEvents)

	default:
		res, err := egp.Run(ctx, cfg, egp.Options{Save: *save, Logger: logger})
		if err != nil {
			log.Fatalf("backtest failed: %v", err)
		}

		report.WriteSummary(os.Stdout, res.Result)
		fmt.Println()
		report.WriteHoldings(os.Stdout, res.FinalWeights, res.Holdings)
		fmt.Println()
		report.WriteEvents(os.Stdout, res.Events, *maxEvents)
		fmt.Println()
		report.WriteWarnings(os.Stdout, res.Warnings, *maxWarnings)
		if res.RunID != 0 {
			fmt.Printf("\nsaved as run %d\n", res.RunID)
		}
	}
}

// printRun renders a stored run: headline metrics, stored weights, and the
// recorded rebalances.
func printRun(rec *egp.RunRecord, maxEvents int) {
	fmt.Printf("========== Run %d ==========\n", rec.ID)
	fmt.Printf("Created               %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Allocator             %s\n", rec.Allocator)
	fmt.Printf("Period                %s .. %s\n",
		rec.StartDate.Format("2006-01-02"), rec.EndDate.Format("2006-01-02"))
	fmt.Printf("Rebalances            %d (%d fallbacks)\n", rec.Rebalances, rec.Fallbacks)
	fmt.Println()
	fmt.Printf("%-22s %12s\n", "Total return", report.FormatPct(rec.TotalReturn))
	fmt.Printf("%-22s %12s\n", "Annualized return", report.FormatPct(rec.AnnualizedReturn))
	fmt.Printf("%-22s %12s\n", "Annualized volatility", report.FormatPct(rec.AnnualizedVolatility))
	fmt.Printf("%-22s %12.2f\n", "Sharpe ratio", rec.SharpeRatio)
	fmt.Printf("%-22s %12s\n", "Max drawdown", report.FormatPct(rec.MaxDrawdown))
	fmt.Printf("%-22s %12s\n", "Win rate", report.FormatPct(rec.WinRate))
	fmt.Println()
	report.WriteHoldings(os.Stdout, rec.Weights, nil)
	fmt.Println()
	report.WriteEvents(os.Stdout, rec.Events, maxEvents)
}
