// Package report renders backtest results, rankings, and saved-run listings
// as fixed-width text for the command-line tools.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/backtest"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/domain"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/engine"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/portfolio"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/store"
)

const dateFormat = "2006-01-02"

// WriteSummary prints the headline metrics of a finished backtest, with a
// benchmark column when the run produced one.
func WriteSummary(w io.Writer, res *backtest.Result) {
	fmt.Fprintf(w, "========== Backtest Summary ==========\n")
	if len(res.Dates) > 0 {
		fmt.Fprintf(w, "Period                %s .. %s (%s periods)\n",
			res.Dates[0].Format(dateFormat),
			res.Dates[len(res.Dates)-1].Format(dateFormat),
			FormatInt(len(res.Dates)))
	}
	fmt.Fprintf(w, "Rebalances            %d (%d fallbacks)\n", res.Rebalances, res.Fallbacks)
	fmt.Fprintf(w, "Transaction costs     %s\n", FormatMoney(res.TotalCost))
	if len(res.Values) > 0 {
		fmt.Fprintf(w, "Final value           %s\n", FormatMoney(res.Values[len(res.Values)-1]))
	}
	fmt.Fprintln(w)

	rows := []struct {
		label string
		pick  func(m backtest.Metrics) string
	}{
		{"Total return", func(m backtest.Metrics) string { return FormatPct(m.TotalReturn) }},
		{"Annualized return", func(m backtest.Metrics) string { return FormatPct(m.AnnualizedReturn) }},
		{"Annualized volatility", func(m backtest.Metrics) string { return FormatPct(m.AnnualizedVolatility) }},
		{"Sharpe ratio", func(m backtest.Metrics) string { return fmt.Sprintf("%.2f", m.SharpeRatio) }},
		{"Max drawdown", func(m backtest.Metrics) string { return FormatPct(m.MaxDrawdown) }},
		{"Win rate", func(m backtest.Metrics) string { return FormatPct(m.WinRate) }},
	}

	if res.Benchmark != nil {
		fmt.Fprintf(w, "%-22s %12s %12s\n", "", "Portfolio", "Benchmark")
		for _, r := range rows {
			fmt.Fprintf(w, "%-22s %12s %12s\n", r.label, r.pick(res.Metrics), r.pick(*res.Benchmark))
		}
	} else {
		for _, r := range rows {
			fmt.Fprintf(w, "%-22s %12s\n", r.label, r.pick(res.Metrics))
		}
	}
}

// WriteHoldings prints the final weights and share counts, largest absolute
// weight first. A nil holdings map omits the share column.
func WriteHoldings(w io.Writer, weights map[string]float64, holdings map[string]int64) {
	if len(weights) == 0 {
		return
	}
	symbols := make([]string, 0, len(weights))
	for sym := range weights {
		symbols = append(symbols, sym)
	}
	sort.Slice(symbols, func(i, j int) bool {
		ai, aj := math.Abs(weights[symbols[i]]), math.Abs(weights[symbols[j]])
		if ai != aj {
			return ai > aj
		}
		return symbols[i] < symbols[j]
	})

	fmt.Fprintf(w, "========== Final Holdings ==========\n")
	if holdings == nil {
		fmt.Fprintf(w, "%-8s %10s\n", "Symbol", "Weight")
		for _, sym := range symbols {
			fmt.Fprintf(w, "%-8s %10s\n", sym, FormatWeight(weights[sym]))
		}
		return
	}
	fmt.Fprintf(w, "%-8s %10s %10s\n", "Symbol", "Weight", "Shares")
	for _, sym := range symbols {
		fmt.Fprintf(w, "%-8s %10s %10s\n", sym,
			FormatWeight(weights[sym]), FormatInt(int(holdings[sym])))
	}
}

// WriteEvents prints one line per rebalance. A positive max caps the listing
// and reports how many events were omitted.
func WriteEvents(w io.Writer, events []portfolio.RebalanceEvent, max int) {
	if len(events) == 0 {
		return
	}
	fmt.Fprintf(w, "========== Rebalances ==========\n")
	fmt.Fprintf(w, "%-12s %7s %8s %12s %14s\n", "Date", "Trades", "Skipped", "Cost", "Value")

	n := len(events)
	if max > 0 && max < n {
		n = max
	}
	for _, ev := range events[:n] {
		fmt.Fprintf(w, "%-12s %7d %8d %12s %14s\n",
			ev.Date.Format(dateFormat), len(ev.Trades), len(ev.Skipped),
			FormatMoney(ev.TotalCost), FormatMoney(ev.ValueAfter))
	}
	if n < len(events) {
		fmt.Fprintf(w, "  (%d more)\n", len(events)-n)
	}
}

// WriteWarnings prints per-code counts followed by up to max detail lines.
func WriteWarnings(w io.Writer, warnings []domain.Warning, max int) {
	if len(warnings) == 0 {
		return
	}
	counts := make(map[domain.WarningCode]int)
	for _, warn := range warnings {
		counts[warn.Code]++
	}
	codes := make([]string, 0, len(counts))
	for code := range counts {
		codes = append(codes, string(code))
	}
	sort.Strings(codes)

	fmt.Fprintf(w, "========== Warnings (%d) ==========\n", len(warnings))
	for _, code := range codes {
		fmt.Fprintf(w, "%-28s %6d\n", code, counts[domain.WarningCode(code)])
	}

	n := len(warnings)
	if max > 0 && max < n {
		n = max
	}
	fmt.Fprintln(w)
	for _, warn := range warnings[:n] {
		fmt.Fprintf(w, "  %s\n", warn.String())
	}
	if n < len(warnings) {
		fmt.Fprintf(w, "  (%d more)\n", len(warnings)-n)
	}
}

// WriteRanking prints the one-shot ranking: portfolio statistics under the
// single-index model, then per-asset weights with their fit estimates.
func WriteRanking(w io.Writer, out *engine.RankOutcome) {
	fmt.Fprintf(w, "========== EGP Ranking as of %s ==========\n", out.AsOf.Format(dateFormat))
	fmt.Fprintf(w, "Window                %d observations\n", out.WindowSize)
	fmt.Fprintf(w, "Cutoff rate C0        %.6f\n", out.C0)
	fmt.Fprintf(w, "Expected return       %s per period\n", FormatPct(out.Stats.ExpectedReturn))
	fmt.Fprintf(w, "Portfolio beta        %.4f\n", out.Stats.Beta)
	fmt.Fprintf(w, "Volatility            %s per period\n", FormatPct(out.Stats.StdDev))
	fmt.Fprintf(w, "Sharpe ratio          %.4f\n", out.Stats.Sharpe)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%-8s %10s %10s %8s %9s %6s\n",
		"Symbol", "Weight", "Z-score", "Beta", "Alpha", "R2")
	for _, h := range out.Holdings {
		p := out.Params[h.Symbol]
		fmt.Fprintf(w, "%-8s %10s %10.4f %8.4f %9.5f %6.3f\n",
			h.Symbol, FormatWeight(h.Weight), out.ZScores[h.Symbol],
			p.Beta, p.Alpha, p.RSquared)
	}

	if len(out.Skipped) > 0 {
		fmt.Fprintf(w, "\nSkipped %d symbols:", len(out.Skipped))
		for _, sym := range out.Skipped {
			fmt.Fprintf(w, " %s", sym)
		}
		fmt.Fprintln(w)
	}
}

// WriteRuns prints saved-run summaries, one per line, in store order.
func WriteRuns(w io.Writer, runs []store.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no saved runs")
		return
	}
	fmt.Fprintf(w, "%4s  %-16s %-14s %-24s %10s %8s\n",
		"ID", "Created", "Allocator", "Period", "Total", "Sharpe")
	for _, r := range runs {
		period := r.StartDate.Format(dateFormat) + " .. " + r.EndDate.Format(dateFormat)
		fmt.Fprintf(w, "%4d  %-16s %-14s %-24s %10s %8.2f\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Allocator, period,
			FormatPct(r.TotalReturn), r.SharpeRatio)
	}
}
