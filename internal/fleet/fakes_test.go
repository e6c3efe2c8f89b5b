package fleet

import (
	"context"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tuorg/fleetcare/internal/db"
	"github.com/tuorg/fleetcare/internal/models"
)

// In-memory stores used by the service tests. They honor the same contracts
// as the Mongo collections, including db.ErrNotFound.

type memBusStore struct {
	mu    sync.Mutex
	buses map[string]models.Bus
}

func newMemBusStore() *memBusStore {
	return &memBusStore{buses: make(map[string]models.Bus)}
}

func (m *memBusStore) InsertBus(_ context.Context, bus models.Bus) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bus.ID.IsZero() {
		bus.ID = primitive.NewObjectID()
	}
	m.buses[bus.ID.Hex()] = bus
	return bus.ID.Hex(), nil
}

func (m *memBusStore) FindBusByID(_ context.Context, id string) (*models.Bus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bus, ok := m.buses[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &bus, nil
}

func (m *memBusStore) FindBuses(_ context.Context) ([]models.Bus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Bus, 0, len(m.buses))
	for _, b := range m.buses {
		out = append(out, b)
	}
	return out, nil
}

func (m *memBusStore) ExistsByPlate(_ context.Context, plate string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.buses {
		if b.Plate == plate {
			return true, nil
		}
	}
	return false, nil
}

func (m *memBusStore) UpdateBus(_ context.Context, id string, bus models.Bus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buses[id]; !ok {
		return db.ErrNotFound
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	bus.ID = oid
	m.buses[id] = bus
	return nil
}

func (m *memBusStore) DeleteBus(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buses[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.buses, id)
	return nil
}

type memOrderStore struct {
	mu     sync.Mutex
	orders map[string]models.MaintenanceOrder
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{orders: make(map[string]models.MaintenanceOrder)}
}

func (m *memOrderStore) InsertOrder(_ context.Context, order models.MaintenanceOrder) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	m.orders[order.ID.Hex()] = order
	return order.ID.Hex(), nil
}

func (m *memOrderStore) FindOrderByID(_ context.Context, id string) (*models.MaintenanceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &order, nil
}

func (m *memOrderStore) FindOrders(_ context.Context) ([]models.MaintenanceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.MaintenanceOrder, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out, nil
}

func (m *memOrderStore) FindOrdersByBus(_ context.Context, busID string) ([]models.MaintenanceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MaintenanceOrder
	for _, o := range m.orders {
		if o.BusID == busID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOrderStore) ExistsByBusAndStatus(_ context.Context, busID string, status models.MaintenanceStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.BusID == busID && o.Status == status {
			return true, nil
		}
	}
	return false, nil
}

func (m *memOrderStore) UpdateOrder(_ context.Context, id string, order models.MaintenanceOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return db.ErrNotFound
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	order.ID = oid
	m.orders[id] = order
	return nil
}

type memNotificationStore struct {
	mu            sync.Mutex
	notifications []models.Notification
}

func newMemNotificationStore() *memNotificationStore {
	return &memNotificationStore{}
}

func (m *memNotificationStore) InsertNotification(_ context.Context, n models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *memNotificationStore) FindUnreadByEmail(_ context.Context, email string) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for _, n := range m.notifications {
		if n.UserEmail == email && !n.Read {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memNotificationStore) CountUnreadByEmail(_ context.Context, email string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, n := range m.notifications {
		if n.UserEmail == email && !n.Read {
			count++
		}
	}
	return count, nil
}

func (m *memNotificationStore) MarkRead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.notifications {
		if n.ID.Hex() == id {
			m.notifications[i].Read = true
			return nil
		}
	}
	return db.ErrNotFound
}

func (m *memNotificationStore) MarkReadByReference(_ context.Context, ref string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for i, n := range m.notifications {
		if !n.Read && (strings.Contains(n.Content, ref) || strings.Contains(n.Link, ref)) {
			m.notifications[i].Read = true
			count++
		}
	}
	return count, nil
}

// recordingNotifier captures notices instead of delivering them. failWith,
// when set, makes every Notify call fail.
type recordingNotifier struct {
	mu       sync.Mutex
	sent     []models.Notification
	failWith error
}

func (r *recordingNotifier) Notify(_ context.Context, n models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) all() []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Notification, len(r.sent))
	copy(out, r.sent)
	return out
}
