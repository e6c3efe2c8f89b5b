package fleet

import (
	"context"
	"fmt"

	"github.com/zoobzio/clockz"

	"github.com/tuorg/fleetcare/internal/db"
	"github.com/tuorg/fleetcare/internal/models"
)

// maxAdjustDays bounds the manual adjustment applied to a predicted date.
const maxAdjustDays = 7

// AutoScheduleService creates planned preventive orders from the prediction
// engine's output. Stricter than manual creation: a PLANNED order also blocks.
type AutoScheduleService struct {
	orders     db.OrderCollection
	busService *BusService
	notifier   Notifier
	locks      *KeyedMutex
	clock      clockz.Clock
}

// NewAutoScheduleService wires the auto-scheduler. locks must be the instance
// shared with the bus and maintenance services.
func NewAutoScheduleService(orders db.OrderCollection, busService *BusService, notifier Notifier, locks *KeyedMutex, clock clockz.Clock) *AutoScheduleService {
	return &AutoScheduleService{
		orders:     orders,
		busService: busService,
		notifier:   notifier,
		locks:      locks,
		clock:      clock,
	}
}

// ScheduleByPrediction creates a PLANNED PREVENTIVE order at the predicted
// next-maintenance date. adjustDays, when non-nil, must be within [-7, 7] and
// shifts the date; a predicted date in the past is first clamped to tomorrow.
// actorEmail receives the confirmation notice.
func (s *AutoScheduleService) ScheduleByPrediction(ctx context.Context, busID string, adjustDays *int64, actorEmail string) (*models.MaintenanceOrder, error) {
	if adjustDays != nil && (*adjustDays < -maxAdjustDays || *adjustDays > maxAdjustDays) {
		return nil, fmt.Errorf("%w: adjustment allowed within ±%d days", ErrInvalidInput, maxAdjustDays)
	}

	s.locks.Lock(busID)
	defer s.locks.Unlock(busID)

	bus, err := s.busService.Get(ctx, busID)
	if err != nil {
		return nil, err
	}
	if bus.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: cannot auto-schedule maintenance for a %s bus", ErrConflict, bus.Status)
	}

	for _, blocking := range []models.MaintenanceStatus{models.OrderOpen, models.OrderPlanned} {
		exists, err := s.orders.ExistsByBusAndStatus(ctx, busID, blocking)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: a %s order already exists for this bus", ErrConflict, blocking)
		}
	}

	today := toDate(s.clock.Now())
	pred := s.busService.Predictor().Estimate(bus.KmCurrent, bus.LastMaintenanceDate, today, 0)
	if pred.FinalDate == nil {
		return nil, fmt.Errorf("%w: not enough data to schedule", ErrInsufficientData)
	}

	date := toDate(*pred.FinalDate)
	if date.Before(today) {
		// Never schedule into the past.
		date = addDays(today, 1)
	}
	if adjustDays != nil {
		date = addDays(date, *adjustDays)
	}

	order := models.MaintenanceOrder{
		BusID:     busID,
		Type:      models.TypePreventive,
		Status:    models.OrderPlanned,
		PlannedAt: &date,
	}
	id, err := s.orders.InsertOrder(ctx, order)
	if err != nil {
		return nil, err
	}

	saved, err := s.orders.FindOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	n := models.Notification{
		UserEmail: actorEmail,
		Title:     "Maintenance order auto-scheduled",
		Content:   fmt.Sprintf("A maintenance order was created automatically for bus with plate %s.", bus.Plate),
		Link:      "/maintenance?busId=" + busID,
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		logNotifyFailure(n, err)
	}
	return saved, nil
}
