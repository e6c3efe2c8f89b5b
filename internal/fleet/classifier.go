package fleet

import (
	"time"

	"github.com/tuorg/fleetcare/internal/config"
	"github.com/tuorg/fleetcare/internal/models"
)

// Classifier turns a bus's mileage and last-service date into an operational
// status. It is pure: same inputs, same output.
type Classifier struct {
	rules config.Rules
}

// NewClassifier builds a classifier over the given rule thresholds.
func NewClassifier(rules config.Rules) *Classifier {
	return &Classifier{rules: rules}
}

// Classify computes the status from the km axis and the elapsed-time axis and
// returns the worse of the two. It never returns FUERA_SERVICIO or
// REEMPLAZADO; those are manual-only states.
//
// Per axis: below 90% of the threshold is OK, between 90% and 100% inclusive
// is PROXIMO, above is VENCIDO. The 90% boundary truncates
// (floor(0.9 * threshold)). A missing last-maintenance date classifies the
// time axis as PROXIMO: incomplete data is never OK.
func (c *Classifier) Classify(km int64, lastMaintenance *time.Time, today time.Time) models.BusStatus {
	byKm := band(km, c.rules.KmThreshold)

	byTime := models.StatusProximo
	if lastMaintenance != nil {
		byTime = band(daysBetween(*lastMaintenance, today), c.rules.DaysThreshold)
	}

	return byKm.Worse(byTime)
}

// Overdue reports whether the elapsed days since the last maintenance
// strictly exceed the full days threshold. This is the forced-VENCIDO
// override applied during recalculation; it looks at the full threshold, not
// the 90% band.
func (c *Classifier) Overdue(lastMaintenance *time.Time, today time.Time) bool {
	if lastMaintenance == nil {
		return false
	}
	return daysBetween(*lastMaintenance, today) > c.rules.DaysThreshold
}

// band applies the three-band rule shared by both axes.
func band(value, threshold int64) models.BusStatus {
	boundary := int64(0.9 * float64(threshold))
	switch {
	case value < boundary:
		return models.StatusOK
	case value <= threshold:
		return models.StatusProximo
	default:
		return models.StatusVencido
	}
}
