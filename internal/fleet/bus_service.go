package fleet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/zoobzio/clockz"

	"github.com/tuorg/fleetcare/internal/config"
	"github.com/tuorg/fleetcare/internal/db"
	"github.com/tuorg/fleetcare/internal/models"
)

// Notifier accepts fire-and-forget notices. Implementations must be safe for
// concurrent use; failures are logged by callers and never abort a mutation.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// BusService mediates every mutation that can change a bus's derived status
// or next-maintenance date, and owns the notification-on-threshold policy.
type BusService struct {
	buses      db.BusCollection
	notifier   Notifier
	classifier *Classifier
	predictor  *Predictor
	locks      *KeyedMutex
	clock      clockz.Clock
	rules      config.Rules
	opsEmail   string
}

// NewBusService wires a bus lifecycle service. All mutations of one bus are
// serialized through locks, which must be shared with the order services.
func NewBusService(buses db.BusCollection, notifier Notifier, locks *KeyedMutex, clock clockz.Clock, rules config.Rules, opsEmail string) *BusService {
	return &BusService{
		buses:      buses,
		notifier:   notifier,
		classifier: NewClassifier(rules),
		predictor:  NewPredictor(buses, rules),
		locks:      locks,
		clock:      clock,
		rules:      rules,
		opsEmail:   opsEmail,
	}
}

// Predictor exposes the prediction engine backed by the same store and rules.
func (s *BusService) Predictor() *Predictor {
	return s.predictor
}

// today is the injected clock's time truncated to a UTC date.
func (s *BusService) today() time.Time {
	return toDate(s.clock.Now())
}

// Get returns a bus by id.
func (s *BusService) Get(ctx context.Context, id string) (*models.Bus, error) {
	bus, err := s.buses.FindBusByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: bus %s", ErrNotFound, id)
		}
		return nil, err
	}
	return bus, nil
}

// List returns all buses.
func (s *BusService) List(ctx context.Context) ([]models.Bus, error) {
	return s.buses.FindBuses(ctx)
}

// Create registers a new bus with its initial mileage and optional enablement
// date, then recalculates its status and next-maintenance date.
func (s *BusService) Create(ctx context.Context, plate string, kmInitial int64, dateEnabled *time.Time) (*models.Bus, error) {
	plate = strings.TrimSpace(plate)
	if plate == "" {
		return nil, fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}
	if kmInitial < 0 || kmInitial > s.rules.KmMaxAnnual {
		return nil, fmt.Errorf("%w: mileage out of allowed range (0..%d)", ErrInvalidInput, s.rules.KmMaxAnnual)
	}

	// Serialize on the plate so two concurrent creates cannot both pass the
	// duplicate check. The unique index is the store-level backstop.
	key := "plate:" + plate
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	exists, err := s.buses.ExistsByPlate(ctx, plate)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: duplicate plate %s", ErrConflict, plate)
	}

	var last *time.Time
	if dateEnabled != nil {
		d := toDate(*dateEnabled)
		last = &d
	}

	bus := models.Bus{
		Plate:               plate,
		KmCurrent:           kmInitial,
		LastMaintenanceDate: last,
		Status:              models.StatusOK,
	}
	id, err := s.buses.InsertBus(ctx, bus)
	if err != nil {
		return nil, err
	}

	saved, err := s.buses.FindBusByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.recalcAndPersist(ctx, saved)
}

// UpdateKm sets a new odometer value. Mileage is monotonically non-decreasing
// and bounded by the configured annual maximum.
func (s *BusService) UpdateKm(ctx context.Context, id string, newKm int64) (*models.Bus, error) {
	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	bus, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if newKm < bus.KmCurrent {
		return nil, fmt.Errorf("%w: mileage may not decrease (current %d)", ErrInvalidInput, bus.KmCurrent)
	}
	if newKm > s.rules.KmMaxAnnual {
		return nil, fmt.Errorf("%w: mileage out of allowed range (<= %d)", ErrInvalidInput, s.rules.KmMaxAnnual)
	}

	bus.KmCurrent = newKm
	return s.recalcAndPersist(ctx, bus)
}

// UpdateLastMaintenance records the date of the bus's most recent service.
func (s *BusService) UpdateLastMaintenance(ctx context.Context, id string, last time.Time) (*models.Bus, error) {
	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	return s.updateLastMaintenanceLocked(ctx, id, last)
}

// updateLastMaintenanceLocked is UpdateLastMaintenance for callers that
// already hold the bus lock (order close).
func (s *BusService) updateLastMaintenanceLocked(ctx context.Context, id string, last time.Time) (*models.Bus, error) {
	bus, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	last = toDate(last)
	if daysBetween(last, s.today()) > s.rules.DaysMaxBetween {
		return nil, fmt.Errorf("%w: maintenance date exceeds the allowed maximum (%d days)", ErrInvalidInput, s.rules.DaysMaxBetween)
	}

	bus.LastMaintenanceDate = &last
	return s.recalcAndPersist(ctx, bus)
}

// UpdateGeneral mutates plate, mileage, last-maintenance date, alias and
// notes in one call, under the same rules as the dedicated operations.
func (s *BusService) UpdateGeneral(ctx context.Context, id, plate string, km int64, last *time.Time, alias, notes string) (*models.Bus, error) {
	plate = strings.TrimSpace(plate)
	if plate == "" {
		return nil, fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}

	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	bus, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if plate != bus.Plate {
		exists, err := s.buses.ExistsByPlate(ctx, plate)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: duplicate plate %s", ErrConflict, plate)
		}
	}
	if km < bus.KmCurrent {
		return nil, fmt.Errorf("%w: mileage may not decrease (current %d)", ErrInvalidInput, bus.KmCurrent)
	}
	if km > s.rules.KmMaxAnnual {
		return nil, fmt.Errorf("%w: mileage out of allowed range (<= %d)", ErrInvalidInput, s.rules.KmMaxAnnual)
	}
	if last != nil {
		d := toDate(*last)
		if daysBetween(d, s.today()) > s.rules.DaysMaxBetween {
			return nil, fmt.Errorf("%w: maintenance date exceeds the allowed maximum (%d days)", ErrInvalidInput, s.rules.DaysMaxBetween)
		}
		bus.LastMaintenanceDate = &d
	}

	bus.Plate = plate
	bus.KmCurrent = km
	bus.Alias = alias
	bus.Notes = notes
	return s.recalcAndPersist(ctx, bus)
}

// UpdateStatus sets the status directly, bypassing recalculation. Used for
// the manual FUERA_SERVICIO and REEMPLAZADO transitions.
func (s *BusService) UpdateStatus(ctx context.Context, id string, status models.BusStatus, replacementID string) (*models.Bus, error) {
	if !models.IsValidBusStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}

	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	bus, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	bus.Status = status
	if status == models.StatusReemplazado {
		bus.ReplacementID = replacementID
	}
	if err := s.buses.UpdateBus(ctx, id, *bus); err != nil {
		return nil, err
	}

	switch status {
	case models.StatusFueraServicio:
		s.send(ctx, models.Notification{
			UserEmail: s.opsEmail,
			Title:     "Bus marked out of service",
			Content:   fmt.Sprintf("Bus with plate %s was marked out of service.", bus.Plate),
			Link:      "/buses/" + id,
		})
	case models.StatusReemplazado:
		s.send(ctx, models.Notification{
			UserEmail: s.opsEmail,
			Title:     "Bus replaced",
			Content:   fmt.Sprintf("Bus with plate %s was replaced by %s.", bus.Plate, replacementID),
			Link:      "/buses/" + id,
		})
	}
	return bus, nil
}

// Delete removes the bus unconditionally. Maintenance orders are kept as
// service history.
func (s *BusService) Delete(ctx context.Context, id string) error {
	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	if err := s.buses.DeleteBus(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: bus %s", ErrNotFound, id)
		}
		return err
	}
	return nil
}

// recalcAndPersist refreshes the derived status and next-maintenance date and
// saves the bus. Terminal statuses suppress recalculation; the mutation that
// got us here is still persisted. Callers must hold the bus lock.
func (s *BusService) recalcAndPersist(ctx context.Context, bus *models.Bus) (*models.Bus, error) {
	id := bus.ID.Hex()
	today := s.today()

	if !bus.Status.IsTerminal() {
		if s.classifier.Overdue(bus.LastMaintenanceDate, today) {
			// Past the full days threshold: overdue regardless of mileage,
			// and the next maintenance is due now.
			bus.Status = models.StatusVencido
			next := today
			bus.NextMaintenanceDate = &next
		} else {
			bus.Status = s.classifier.Classify(bus.KmCurrent, bus.LastMaintenanceDate, today)
			pred := s.predictor.Estimate(bus.KmCurrent, bus.LastMaintenanceDate, today, 0)
			bus.NextMaintenanceDate = pred.FinalDate
		}
	}

	if err := s.buses.UpdateBus(ctx, id, *bus); err != nil {
		return nil, err
	}

	if bus.Status == models.StatusProximo || bus.Status == models.StatusVencido {
		s.send(ctx, models.Notification{
			UserEmail: s.opsEmail,
			Title:     "Maintenance " + strings.ToLower(string(bus.Status)),
			Content:   fmt.Sprintf("Bus with plate %s requires maintenance attention.", bus.Plate),
			Link:      "/buses/" + id,
		})
	}
	return bus, nil
}

// send delivers a notification best-effort. A failing sink never rolls back
// the mutation that triggered the notice.
func (s *BusService) send(ctx context.Context, n models.Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		logNotifyFailure(n, err)
	}
}

func logNotifyFailure(n models.Notification, err error) {
	log.WithFields(log.Fields{
		"title": n.Title,
		"link":  n.Link,
	}).WithError(err).Warn("Failed to send notification")
}
