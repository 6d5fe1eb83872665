package backtest

import (
	"testing"
	"time"

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/domain"
)

func dayAt(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestScheduleMonthly(t *testing.T) {
	// 2023-04-30 is a Sunday, so April's trading data ends on the 28th and
	// the boundary is skipped rather than shifted.
	dates := []time.Time{
		dayAt("2023-03-30"),
		dayAt("2023-03-31"),
		dayAt("2023-04-28"),
		dayAt("2023-05-31"),
		dayAt("2023-06-30"),
	}
	set := scheduleSet(dates, domain.RebalanceMonthly)
	want := map[int]bool{1: true, 3: true, 4: true}
	for i := range dates {
		if set[i] != want[i] {
			t.Errorf("index %d (%s): scheduled = %v, want %v",
				i, dates[i].Format("2006-01-02"), set[i], want[i])
		}
	}
}

func TestScheduleQuarterly(t *testing.T) {
	dates := []time.Time{
		dayAt("2023-03-31"),
		dayAt("2023-05-31"),
		dayAt("2023-06-30"),
		dayAt("2023-12-29"),
	}
	set := scheduleSet(dates, domain.RebalanceQuarterly)
	if !set[0] || set[1] || !set[2] || set[3] {
		t.Errorf("quarterly schedule = %v, want indexes 0 and 2 only", set)
	}
}

func TestScheduleYearly(t *testing.T) {
	dates := []time.Time{
		dayAt("2024-12-30"),
		dayAt("2024-12-31"),
		dayAt("2025-01-31"),
	}
	set := scheduleSet(dates, domain.RebalanceYearly)
	if set[0] || !set[1] || set[2] {
		t.Errorf("yearly schedule = %v, want index 1 only", set)
	}
}

func TestPeriodEndIgnoresTimeOfDay(t *testing.T) {
	// Daily bars often carry the session open time, not midnight.
	d := time.Date(2024, 1, 31, 5, 0, 0, 0, time.UTC)
	if !isPeriodEnd(d, domain.RebalanceMonthly) {
		t.Error("month end with intraday timestamp should trigger")
	}
	if isPeriodEnd(time.Date(2024, 2, 28, 5, 0, 0, 0, time.UTC), domain.RebalanceMonthly) {
		t.Error("2024-02-28 is not the leap-year month end")
	}
}
