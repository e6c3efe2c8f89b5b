package fleet

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/zoobzio/clockz"

	"github.com/tuorg/fleetcare/internal/db"
	"github.com/tuorg/fleetcare/internal/models"
)

// MaintenanceService governs the order lifecycle: PLANNED -> OPEN -> CLOSED,
// one-directional, with at most one OPEN order per bus. Admission checks run
// under the same per-bus lock as bus mutations so they cannot race them.
type MaintenanceService struct {
	orders        db.OrderCollection
	busService    *BusService
	notifications db.NotificationCollection
	locks         *KeyedMutex
	clock         clockz.Clock
}

// NewMaintenanceService wires the order service. locks must be the instance
// shared with the bus service.
func NewMaintenanceService(orders db.OrderCollection, busService *BusService, notifications db.NotificationCollection, locks *KeyedMutex, clock clockz.Clock) *MaintenanceService {
	return &MaintenanceService{
		orders:        orders,
		busService:    busService,
		notifications: notifications,
		locks:         locks,
		clock:         clock,
	}
}

// ListAll returns every maintenance order.
func (s *MaintenanceService) ListAll(ctx context.Context) ([]models.MaintenanceOrder, error) {
	return s.orders.FindOrders(ctx)
}

// ListByBus returns the orders of one bus, including orders whose bus has
// since been deleted.
func (s *MaintenanceService) ListByBus(ctx context.Context, busID string) ([]models.MaintenanceOrder, error) {
	return s.orders.FindOrdersByBus(ctx, busID)
}

// Get returns an order by id.
func (s *MaintenanceService) Get(ctx context.Context, id string) (*models.MaintenanceOrder, error) {
	order, err := s.orders.FindOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
		}
		return nil, err
	}
	return order, nil
}

// Create admits a new PLANNED order. Rejected for retired buses and when the
// bus already has an OPEN order; a PLANNED order does not block manual
// creation.
func (s *MaintenanceService) Create(ctx context.Context, busID string, orderType models.MaintenanceType, plannedAt *time.Time, notes string) (*models.MaintenanceOrder, error) {
	if !models.IsValidMaintenanceType(orderType) {
		return nil, fmt.Errorf("%w: unknown maintenance type %q", ErrInvalidInput, orderType)
	}

	s.locks.Lock(busID)
	defer s.locks.Unlock(busID)

	bus, err := s.busService.Get(ctx, busID)
	if err != nil {
		return nil, err
	}
	if bus.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: cannot create an order for a %s bus", ErrConflict, bus.Status)
	}

	open, err := s.orders.ExistsByBusAndStatus(ctx, busID, models.OrderOpen)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, fmt.Errorf("%w: an OPEN order already exists for this bus", ErrConflict)
	}

	order := models.MaintenanceOrder{
		BusID:     busID,
		Type:      orderType,
		Status:    models.OrderPlanned,
		PlannedAt: plannedAt,
		Notes:     notes,
	}
	id, err := s.orders.InsertOrder(ctx, order)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Open transitions an order to OPEN. Rejected when the order is CLOSED or
// another order for the same bus is already OPEN.
func (s *MaintenanceService) Open(ctx context.Context, id string) (*models.MaintenanceOrder, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.locks.Lock(order.BusID)
	defer s.locks.Unlock(order.BusID)

	// Re-read under the lock; the first read only resolved the bus id.
	order, err = s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status == models.OrderClosed {
		return nil, fmt.Errorf("%w: order was already closed", ErrConflict)
	}
	if order.Status != models.OrderOpen {
		open, err := s.orders.ExistsByBusAndStatus(ctx, order.BusID, models.OrderOpen)
		if err != nil {
			return nil, err
		}
		if open {
			return nil, fmt.Errorf("%w: another OPEN order already exists for this bus", ErrConflict)
		}
	}

	now := s.clock.Now()
	order.Status = models.OrderOpen
	order.OpenedAt = &now
	if err := s.orders.UpdateOrder(ctx, id, *order); err != nil {
		return nil, err
	}
	return order, nil
}

// Close transitions an order to CLOSED. The owning bus's last-maintenance
// date is set to today, forcing a recalculation; unread notifications that
// reference the bus are marked read, best-effort.
func (s *MaintenanceService) Close(ctx context.Context, id string, notes string) (*models.MaintenanceOrder, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.locks.Lock(order.BusID)
	defer s.locks.Unlock(order.BusID)

	order, err = s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status == models.OrderClosed {
		return nil, fmt.Errorf("%w: order was already closed", ErrConflict)
	}

	now := s.clock.Now()
	order.Status = models.OrderClosed
	order.ClosedAt = &now
	if notes != "" {
		order.Notes = notes
	}

	if _, err := s.busService.updateLastMaintenanceLocked(ctx, order.BusID, toDate(now)); err != nil {
		// The bus may have been deleted under the order; the close itself
		// still proceeds.
		log.WithFields(log.Fields{"order_id": id, "bus_id": order.BusID}).
			WithError(err).Warn("Failed to refresh bus after order close")
	}

	if n, err := s.notifications.MarkReadByReference(ctx, order.BusID); err != nil {
		log.WithField("bus_id", order.BusID).WithError(err).Warn("Failed to mark related notifications read")
	} else if n > 0 {
		log.WithFields(log.Fields{"bus_id": order.BusID, "count": n}).Debug("Marked related notifications read")
	}

	if err := s.orders.UpdateOrder(ctx, id, *order); err != nil {
		return nil, err
	}
	return order, nil
}
