package engine

import (
	"time"

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/domain"
)

// CheckWeightLimits reports whether the configured per-asset weight bounds
// can hold simultaneously for n assets. A max weight below 1/n leaves the
// portfolio unable to reach full investment; a min weight above 1/n forces
// it past it. Zero bounds are disabled and never flagged.
func CheckWeightLimits(maxWeight, minWeight float64, n int) []domain.Warning {
	if n <= 0 {
		return nil
	}
	var warnings []domain.Warning
	if maxWeight > 0 && maxWeight*float64(n) < 1 {
		warnings = append(warnings, domain.Warnf(domain.WarnInfeasibleBounds, time.Time{}, "",
			"max weight %g caps %d assets at %g total, below full investment",
			maxWeight, n, maxWeight*float64(n)))
	}
	if minWeight > 0 && minWeight*float64(n) > 1 {
		warnings = append(warnings, domain.Warnf(domain.WarnInfeasibleBounds, time.Time{}, "",
			"min weight %g forces %d assets to %g total, above full investment",
			minWeight, n, minWeight*float64(n)))
	}
	return warnings
}
