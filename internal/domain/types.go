// Package domain holds the core types shared across the EGP pipeline:
// market data records, frequency enums, and the warning/error taxonomy.
package domain

import (
	"fmt"
	"time"
)

// --- Markets ---

// Market identifies a data source region.
type Market string

const (
	MarketUS Market = "us"
)

// --- Bars ---

// Bar is a single OHLCV record for one symbol.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// --- Frequencies ---

// SampleFrequency is the sampling frequency of a price or return series.
type SampleFrequency string

const (
	FreqDaily   SampleFrequency = "daily"
	FreqWeekly  SampleFrequency = "weekly"
	FreqMonthly SampleFrequency = "monthly"
)

// Valid reports whether f is a known sampling frequency.
func (f SampleFrequency) Valid() bool {
	switch f {
	case FreqDaily, FreqWeekly, FreqMonthly:
		return true
	}
	return false
}

// PeriodsPerYear returns the annualization factor for the frequency:
// 252 trading days, 52 weeks, or 12 months. Unknown frequencies return 0.
func (f SampleFrequency) PeriodsPerYear() float64 {
	switch f {
	case FreqDaily:
		return 252
	case FreqWeekly:
		return 52
	case FreqMonthly:
		return 12
	}
	return 0
}

// RebalanceFrequency is how often the backtest re-allocates the portfolio.
type RebalanceFrequency string

const (
	RebalanceMonthly   RebalanceFrequency = "monthly"
	RebalanceQuarterly RebalanceFrequency = "quarterly"
	RebalanceYearly    RebalanceFrequency = "yearly"
)

// Valid reports whether f is a known rebalance frequency.
func (f RebalanceFrequency) Valid() bool {
	switch f {
	case RebalanceMonthly, RebalanceQuarterly, RebalanceYearly:
		return true
	}
	return false
}

// --- Warnings ---

// WarningCode classifies a non-fatal event observed during estimation,
// optimization, or backtesting.
type WarningCode string

const (
	// WarnUnfitAsset marks an asset dropped from estimation for having too
	// few usable observations or a degenerate regressor.
	WarnUnfitAsset WarningCode = "unfit_asset"
	// WarnLowConfidence marks a fit performed on fewer than the recommended
	// number of aligned observations.
	WarnLowConfidence WarningCode = "low_confidence_fit"
	// WarnDegenerateRanking marks an optimization whose ranking scores were
	// all zero, forcing equal weights.
	WarnDegenerateRanking WarningCode = "degenerate_ranking"
	// WarnNotConverged marks a weight-constraint projection that hit its
	// pass limit without reaching a fixed point.
	WarnNotConverged WarningCode = "projection_not_converged"
	// WarnInsufficientWindow marks a rebalance date whose estimation window
	// was too short to fit the model.
	WarnInsufficientWindow WarningCode = "insufficient_window"
	// WarnFallback marks a rebalance date where allocation failed and the
	// backtest fell back to equal weights.
	WarnFallback WarningCode = "equal_weight_fallback"
	// WarnMissingPrice marks a symbol excluded from a rebalance because its
	// price was absent or unusable on that date.
	WarnMissingPrice WarningCode = "missing_price"
	// WarnInfeasibleBounds marks weight limits that cannot all be met for
	// the given number of assets.
	WarnInfeasibleBounds WarningCode = "infeasible_bounds"
	// WarnDataGap marks a symbol that could not be loaded from storage.
	WarnDataGap WarningCode = "data_gap"
)

// Warning records a non-fatal event. Date and Symbol are optional and are
// zero-valued when the event is not tied to one.
type Warning struct {
	Code   WarningCode
	Date   time.Time
	Symbol string
	Detail string
}

func (w Warning) String() string {
	s := string(w.Code)
	if !w.Date.IsZero() {
		s += " " + w.Date.Format("2006-01-02")
	}
	if w.Symbol != "" {
		s += " " + w.Symbol
	}
	if w.Detail != "" {
		s += ": " + w.Detail
	}
	return s
}

// Warnf builds a Warning with a formatted detail message.
func Warnf(code WarningCode, date time.Time, symbol, format string, args ...any) Warning {
	return Warning{Code: code, Date: date, Symbol: symbol, Detail: fmt.Sprintf(format, args...)}
}
