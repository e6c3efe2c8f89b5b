package fleet

import (
	"context"
	"fmt"
	"time"

	"github.com/tuorg/fleetcare/internal/config"
	"github.com/tuorg/fleetcare/internal/db"
	"github.com/tuorg/fleetcare/internal/models"
)

// NoteInsufficientData is attached to a prediction when no final date could
// be computed.
const NoteInsufficientData = "insufficient data"

// Predictor estimates the next maintenance date from mileage trend and
// elapsed time. The Estimate method is pure; PredictByBus adds a store lookup
// on top of it and must produce identical results for identical inputs.
type Predictor struct {
	buses db.BusCollection
	rules config.Rules
}

// NewPredictor builds a predictor over the given store and rule thresholds.
func NewPredictor(buses db.BusCollection, rules config.Rules) *Predictor {
	return &Predictor{buses: buses, rules: rules}
}

// Estimate computes a prediction from raw inputs. kmPerDay <= 0 selects the
// configured daily estimate; either way the rate is clamped to at least 1.
//
// The km axis yields no date when the bus is already past the km threshold:
// there is no future date at which it will reach it. At exactly the threshold
// the remaining distance is zero and the km date is today. The time axis
// yields last maintenance + days threshold when a last date is known. The
// final date is the earlier of the two, absent when neither exists.
func (p *Predictor) Estimate(km int64, lastMaintenance *time.Time, today time.Time, kmPerDay int64) models.Prediction {
	perDay := kmPerDay
	if perDay <= 0 {
		perDay = p.rules.KmDailyEstimate
	}
	if perDay < 1 {
		perDay = 1
	}

	var dateByKm *time.Time
	if remaining := p.rules.KmThreshold - km; remaining >= 0 {
		daysByKm := (remaining + perDay - 1) / perDay // ceil
		d := addDays(today, daysByKm)
		dateByKm = &d
	}

	var dateByTime *time.Time
	if lastMaintenance != nil {
		d := addDays(*lastMaintenance, p.rules.DaysThreshold)
		dateByTime = &d
	}

	pred := models.Prediction{
		DateByKm:   dateByKm,
		DateByTime: dateByTime,
		FinalDate:  earlier(dateByKm, dateByTime),
	}
	if pred.FinalDate == nil {
		pred.Note = NoteInsufficientData
	}
	return pred
}

// PredictByBus looks the bus up by id and runs Estimate on its snapshot.
func (p *Predictor) PredictByBus(ctx context.Context, busID string, kmPerDay int64, today time.Time) (models.Prediction, error) {
	bus, err := p.buses.FindBusByID(ctx, busID)
	if err != nil {
		if err == db.ErrNotFound {
			return models.Prediction{}, fmt.Errorf("%w: bus %s", ErrNotFound, busID)
		}
		return models.Prediction{}, err
	}

	pred := p.Estimate(bus.KmCurrent, bus.LastMaintenanceDate, today, kmPerDay)
	pred.BusID = busID
	return pred, nil
}

// earlier returns the earlier of two optional dates.
func earlier(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.Before(*a):
		return b
	default:
		return a
	}
}
