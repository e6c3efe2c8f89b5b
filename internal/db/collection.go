package db

import (
	"context"
	"errors"

	"github.com/tuorg/fleetcare/internal/models"
)

// ErrNotFound is returned when a referenced document does not exist.
var ErrNotFound = errors.New("document not found")

// BusCollection defines the interface for bus data operations.
type BusCollection interface {
	InsertBus(ctx context.Context, bus models.Bus) (string, error)
	FindBusByID(ctx context.Context, id string) (*models.Bus, error)
	FindBuses(ctx context.Context) ([]models.Bus, error)
	ExistsByPlate(ctx context.Context, plate string) (bool, error)
	UpdateBus(ctx context.Context, id string, bus models.Bus) error
	DeleteBus(ctx context.Context, id string) error
}

// OrderCollection defines the interface for maintenance order operations.
type OrderCollection interface {
	InsertOrder(ctx context.Context, order models.MaintenanceOrder) (string, error)
	FindOrderByID(ctx context.Context, id string) (*models.MaintenanceOrder, error)
	FindOrders(ctx context.Context) ([]models.MaintenanceOrder, error)
	FindOrdersByBus(ctx context.Context, busID string) ([]models.MaintenanceOrder, error)
	ExistsByBusAndStatus(ctx context.Context, busID string, status models.MaintenanceStatus) (bool, error)
	UpdateOrder(ctx context.Context, id string, order models.MaintenanceOrder) error
}

// NotificationCollection defines the interface for notification operations.
type NotificationCollection interface {
	InsertNotification(ctx context.Context, n models.Notification) error
	FindUnreadByEmail(ctx context.Context, email string) ([]models.Notification, error)
	CountUnreadByEmail(ctx context.Context, email string) (int64, error)
	MarkRead(ctx context.Context, id string) error
	MarkReadByReference(ctx context.Context, ref string) (int64, error)
}
