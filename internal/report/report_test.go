package report

import (
	"strings"
	"testing"
	"time"

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/backtest"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/domain"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/egp"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/engine"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/factor"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/portfolio"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/store"
)

func TestFormatInt(t *testing.T) {
	cases := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{7, "7"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-1234567, "-1,234,567"},
	}
	for _, c := range cases {
		if got := FormatInt(c.in); got != c.want {
			t.Errorf("FormatInt(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatMoney(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{1234567.891, "1,234,567.89"},
		{-42.5, "-42.50"},
		{999.999, "1,000.00"},
	}
	for _, c := range cases {
		if got := FormatMoney(c.in); got != c.want {
			t.Errorf("FormatMoney(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatPct(t *testing.T) {
	if got := FormatPct(0.1234); got != "12.34%" {
		t.Errorf("FormatPct = %q, want 12.34%%", got)
	}
	if got := FormatPct(-0.05); got != "-5.00%" {
		t.Errorf("FormatPct = %q, want -5.00%%", got)
	}
	if got := FormatWeight(0.05); got != "+5.00%" {
		t.Errorf("FormatWeight = %q, want +5.00%%", got)
	}
}

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func sampleResult() *backtest.Result {
	bench := backtest.Metrics{TotalReturn: 0.08, SharpeRatio: 0.4}
	return &backtest.Result{
		Dates:  []time.Time{day("2024-01-03"), day("2024-02-29")},
		Values: []float64{10000, 11234.5},
		Metrics: backtest.Metrics{
			TotalReturn:          0.1234,
			AnnualizedReturn:     0.45,
			AnnualizedVolatility: 0.2,
			SharpeRatio:          2.15,
			MaxDrawdown:          0.08,
			WinRate:              0.55,
		},
		Benchmark:    &bench,
		FinalWeights: map[string]float64{"AAA": 0.62, "BBB": 0.38},
		Holdings:     map[string]int64{"AAA": 124, "BBB": 95},
		Rebalances:   3,
		Fallbacks:    1,
		TotalCost:    9.99,
	}
}

func TestWriteSummary(t *testing.T) {
	var b strings.Builder
	WriteSummary(&b, sampleResult())
	out := b.String()

	for _, want := range []string{
		"2024-01-03 .. 2024-02-29",
		"Rebalances            3 (1 fallbacks)",
		"12.34%",          // portfolio total return
		"8.00%",           // benchmark total return
		"Benchmark",       // two-column header
		"11,234.50",       // final value
		"Sharpe ratio",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSummaryNoBenchmark(t *testing.T) {
	res := sampleResult()
	res.Benchmark = nil

	var b strings.Builder
	WriteSummary(&b, res)
	if strings.Contains(b.String(), "Benchmark") {
		t.Errorf("summary has a benchmark column without benchmark metrics:\n%s", b.String())
	}
}

func TestWriteHoldingsOrder(t *testing.T) {
	var b strings.Builder
	WriteHoldings(&b, map[string]float64{"BBB": 0.38, "AAA": 0.62}, map[string]int64{"AAA": 124, "BBB": 95})
	out := b.String()

	if strings.Index(out, "AAA") > strings.Index(out, "BBB") {
		t.Errorf("holdings not sorted by weight:\n%s", out)
	}
	if !strings.Contains(out, "+62.00%") || !strings.Contains(out, "124") {
		t.Errorf("holdings missing weight or shares:\n%s", out)
	}
}

func TestWriteEventsCaps(t *testing.T) {
	events := []portfolio.RebalanceEvent{
		{Date: day("2024-01-03"), Trades: []portfolio.Trade{{Symbol: "AAA"}}, ValueAfter: 10000},
		{Date: day("2024-01-31"), ValueAfter: 10100},
		{Date: day("2024-02-29"), ValueAfter: 10200},
	}

	var b strings.Builder
	WriteEvents(&b, events, 2)
	out := b.String()

	if !strings.Contains(out, "2024-01-31") {
		t.Errorf("second event missing:\n%s", out)
	}
	if strings.Contains(out, "2024-02-29") {
		t.Errorf("capped listing shows the third event:\n%s", out)
	}
	if !strings.Contains(out, "(1 more)") {
		t.Errorf("omitted-count line missing:\n%s", out)
	}
}

func TestWriteWarningsGroups(t *testing.T) {
	warnings := []domain.Warning{
		domain.Warnf(domain.WarnInsufficientWindow, day("2024-01-31"), "", "window has 20 observations"),
		domain.Warnf(domain.WarnLowConfidence, time.Time{}, "AAA", "fit on 25 observations"),
		domain.Warnf(domain.WarnLowConfidence, time.Time{}, "BBB", "fit on 25 observations"),
	}

	var b strings.Builder
	WriteWarnings(&b, warnings, 10)
	out := b.String()

	if !strings.Contains(out, "Warnings (3)") {
		t.Errorf("warning total missing:\n%s", out)
	}
	if !strings.Contains(out, "low_confidence_fit") {
		t.Errorf("per-code counts missing:\n%s", out)
	}
	if !strings.Contains(out, "2024-01-31") {
		t.Errorf("detail lines missing:\n%s", out)
	}
}

func TestWriteWarningsEmpty(t *testing.T) {
	var b strings.Builder
	WriteWarnings(&b, nil, 10)
	if b.Len() != 0 {
		t.Errorf("empty warnings produced output: %q", b.String())
	}
}

func TestWriteRanking(t *testing.T) {
	out := &engine.RankOutcome{
		AsOf:       day("2024-02-29"),
		WindowSize: 35,
		C0:         0.000123,
		Weights:    map[string]float64{"AAA": 0.62, "BBB": 0.38},
		ZScores:    map[string]float64{"AAA": 1.2, "BBB": 0.7},
		Stats:      egp.Stats{ExpectedReturn: 0.0008, Beta: 0.95, StdDev: 0.012, Sharpe: 0.06},
		Holdings: []egp.Holding{
			{Symbol: "AAA", Weight: 0.62},
			{Symbol: "BBB", Weight: 0.38},
		},
		Params: map[string]factor.Params{
			"AAA": {Alpha: 0.0004, Beta: 1.1, RSquared: 0.45},
			"BBB": {Alpha: 0.0001, Beta: 0.8, RSquared: 0.30},
		},
		Skipped: []string{"CCC"},
	}

	var b strings.Builder
	WriteRanking(&b, out)
	got := b.String()

	for _, want := range []string{
		"as of 2024-02-29",
		"35 observations",
		"0.000123",
		"+62.00%",
		"Skipped 1 symbols: CCC",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("ranking missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, "AAA") > strings.Index(got, "BBB") {
		t.Errorf("holdings out of order:\n%s", got)
	}
}

func TestWriteRuns(t *testing.T) {
	runs := []store.RunSummary{
		{ID: 2, CreatedAt: day("2024-03-01"), Allocator: "egp",
			StartDate: day("2024-01-03"), EndDate: day("2024-02-29"),
			TotalReturn: 0.12, SharpeRatio: 1.5},
		{ID: 1, CreatedAt: day("2024-02-01"), Allocator: "equal-weight",
			StartDate: day("2024-01-03"), EndDate: day("2024-01-31"),
			TotalReturn: 0.02, SharpeRatio: 0.5},
	}

	var b strings.Builder
	WriteRuns(&b, runs)
	out := b.String()

	if !strings.Contains(out, "egp") || !strings.Contains(out, "equal-weight") {
		t.Errorf("run rows missing:\n%s", out)
	}
	if !strings.Contains(out, "12.00%") {
		t.Errorf("total return missing:\n%s", out)
	}

	b.Reset()
	WriteRuns(&b, nil)
	if !strings.Contains(b.String(), "no saved runs") {
		t.Errorf("empty listing = %q", b.String())
	}
}
