package backtest

import (
	"time"

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/domain"
)

// scheduleSet marks the row indexes whose date is the final calendar day of
// a rebalance period: the last day of the month, of a quarter-ending month,
// or December 31. Period ends that fall on dates absent from the data do
// not trigger at all.
func scheduleSet(dates []time.Time, freq domain.RebalanceFrequency) map[int]bool {
	set := make(map[int]bool)
	for i, d := range dates {
		if isPeriodEnd(d, freq) {
			set[i] = true
		}
	}
	return set
}

func isPeriodEnd(d time.Time, freq domain.RebalanceFrequency) bool {
	switch freq {
	case domain.RebalanceMonthly:
		return isMonthEnd(d)
	case domain.RebalanceQuarterly:
		return isMonthEnd(d) && d.Month()%3 == 0
	case domain.RebalanceYearly:
		return d.Month() == time.December && d.Day() == 31
	}
	return false
}

func isMonthEnd(d time.Time) bool {
	return d.AddDate(0, 0, 1).Month() != d.Month()
}
