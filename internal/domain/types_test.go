package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestSampleFrequency(t *testing.T) {
	cases := []struct {
		freq  SampleFrequency
		valid bool
		ppy   float64
	}{
		{FreqDaily, true, 252},
		{FreqWeekly, true, 52},
		{FreqMonthly, true, 12},
		{SampleFrequency("hourly"), false, 0},
		{SampleFrequency(""), false, 0},
	}
	for _, c := range cases {
		if got := c.freq.Valid(); got != c.valid {
			t.Errorf("%q Valid() = %v, want %v", c.freq, got, c.valid)
		}
		if got := c.freq.PeriodsPerYear(); got != c.ppy {
			t.Errorf("%q PeriodsPerYear() = %v, want %v", c.freq, got, c.ppy)
		}
	}
}

func TestRebalanceFrequency(t *testing.T) {
	for _, f := range []RebalanceFrequency{RebalanceMonthly, RebalanceQuarterly, RebalanceYearly} {
		if !f.Valid() {
			t.Errorf("%q should be valid", f)
		}
	}
	if RebalanceFrequency("daily").Valid() {
		t.Error("daily should not be a valid rebalance frequency")
	}
}

func TestBar(t *testing.T) {
	bar := Bar{
		Symbol:     "AAPL",
		Timestamp:  time.Date(2024, 1, 15, 5, 0, 0, 0, time.UTC),
		Open:       185.0,
		High:       187.5,
		Low:        184.2,
		Close:      186.9,
		Volume:     52_000_000,
		TradeCount: 610_000,
		VWAP:       186.1,
	}
	if bar.Symbol != "AAPL" || bar.Close != 186.9 {
		t.Errorf("unexpected bar: %+v", bar)
	}
	if MarketUS != "us" {
		t.Errorf("MarketUS = %q, want %q", MarketUS, "us")
	}
}

func TestValidationErrorAs(t *testing.T) {
	err := fmt.Errorf("optimize: %w", Validationf("market variance must be positive, got %g", -0.1))

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("errors.As failed for %v", err)
	}
	if !strings.Contains(verr.Error(), "market variance") {
		t.Errorf("unexpected message: %q", verr.Error())
	}

	var serr *StateError
	if errors.As(err, &serr) {
		t.Error("ValidationError should not match StateError")
	}
}

func TestStateErrorAs(t *testing.T) {
	err := fmt.Errorf("stats: %w", Statef("portfolio statistics requested before optimize"))

	var serr *StateError
	if !errors.As(err, &serr) {
		t.Fatalf("errors.As failed for %v", err)
	}
}

func TestWarningString(t *testing.T) {
	w := Warnf(WarnMissingPrice, time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC), "MSFT", "no price on rebalance date")
	got := w.String()
	want := "missing_price 2024-03-29 MSFT: no price on rebalance date"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	bare := Warning{Code: WarnDegenerateRanking}
	if bare.String() != "degenerate_ranking" {
		t.Errorf("bare String() = %q", bare.String())
	}
}
