package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tuorg/fleetcare/internal/auth"
	"github.com/tuorg/fleetcare/internal/config"
	"github.com/tuorg/fleetcare/internal/db"
	"github.com/tuorg/fleetcare/internal/fleet"
	"github.com/tuorg/fleetcare/internal/middleware"
	"github.com/tuorg/fleetcare/internal/models"
	"github.com/tuorg/fleetcare/internal/notify"
)

// In-memory stores backing the HTTP tests.

type memBuses struct {
	mu    sync.Mutex
	buses map[string]models.Bus
}

func newMemBuses() *memBuses { return &memBuses{buses: make(map[string]models.Bus)} }

func (m *memBuses) InsertBus(_ context.Context, bus models.Bus) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bus.ID.IsZero() {
		bus.ID = primitive.NewObjectID()
	}
	m.buses[bus.ID.Hex()] = bus
	return bus.ID.Hex(), nil
}

func (m *memBuses) FindBusByID(_ context.Context, id string) (*models.Bus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bus, ok := m.buses[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &bus, nil
}

func (m *memBuses) FindBuses(_ context.Context) ([]models.Bus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Bus, 0, len(m.buses))
	for _, b := range m.buses {
		out = append(out, b)
	}
	return out, nil
}

func (m *memBuses) ExistsByPlate(_ context.Context, plate string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.buses {
		if b.Plate == plate {
			return true, nil
		}
	}
	return false, nil
}

func (m *memBuses) UpdateBus(_ context.Context, id string, bus models.Bus) error {
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

func (m *memBuses) DeleteBus(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buses[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.buses, id)
	return nil
}

type memOrders struct {
	mu     sync.Mutex
	orders map[string]models.MaintenanceOrder
}

func newMemOrders() *memOrders {
	return &memOrders{orders: make(map[string]models.MaintenanceOrder)}
}

func (m *memOrders) InsertOrder(_ context.Context, order models.MaintenanceOrder) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	m.orders[order.ID.Hex()] = order
	return order.ID.Hex(), nil
}

func (m *memOrders) FindOrderByID(_ context.Context, id string) (*models.MaintenanceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &order, nil
}

func (m *memOrders) FindOrders(_ context.Context) ([]models.MaintenanceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.MaintenanceOrder, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out, nil
}

func (m *memOrders) FindOrdersByBus(_ context.Context, busID string) ([]models.MaintenanceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.MaintenanceOrder{}
	for _, o := range m.orders {
		if o.BusID == busID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOrders) ExistsByBusAndStatus(_ context.Context, busID string, status models.MaintenanceStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.BusID == busID && o.Status == status {
			return true, nil
		}
	}
	return false, nil
}

func (m *memOrders) UpdateOrder(_ context.Context, id string, order models.MaintenanceOrder) error {
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

type memNotes struct {
	mu            sync.Mutex
	notifications []models.Notification
}

func newMemNotes() *memNotes { return &memNotes{} }

func (m *memNotes) InsertNotification(_ context.Context, n models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *memNotes) FindUnreadByEmail(_ context.Context, email string) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Notification{}
	for _, n := range m.notifications {
		if n.UserEmail == email && !n.Read {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memNotes) CountUnreadByEmail(_ context.Context, email string) (int64, error) {
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

func (m *memNotes) MarkRead(_ context.Context, id string) error {
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

func (m *memNotes) MarkReadByReference(_ context.Context, ref string) (int64, error) {
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

// apiFixture wires the whole HTTP stack against in-memory stores.
type apiFixture struct {
	mux    *http.ServeMux
	buses  *memBuses
	orders *memOrders
	notes  *memNotes
	clock  clockz.Clock
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	buses := newMemBuses()
	orders := newMemOrders()
	notes := newMemNotes()
	locks := fleet.NewKeyedMutex()
	clock := clockz.NewFakeClock()
	notifier := notify.NewService(notes, nil, "")

	busService := fleet.NewBusService(buses, notifier, locks, clock, config.DefaultRules(), "ops@fleetcare.local")
	maintenanceService := fleet.NewMaintenanceService(orders, busService, notes, locks, clock)
	autoScheduler := fleet.NewAutoScheduleService(orders, busService, notifier, locks, clock)

	authService, err := auth.NewService()
	require.NoError(t, err)

	mux := NewRouter(
		NewBusHandler(busService, autoScheduler, clock),
		NewMaintenanceHandler(maintenanceService),
		NewNotificationHandler(notes),
		NewAuthHandler(authService, nil),
	)

	return &apiFixture{mux: mux, buses: buses, orders: orders, notes: notes, clock: clock}
}

// testClaims is the authenticated user the HTTP tests act as.
func testClaims() *models.Claims {
	return &models.Claims{
		UserID:   primitive.NewObjectID().Hex(),
		Username: "manager",
		Email:    "manager@fleetcare.local",
		Role:     models.RoleManager,
	}
}

// do sends a request through the router with user claims attached, the way
// the auth middleware would.
func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(raw)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserContextKey, testClaims()))
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	return w
}

// decode unmarshals a recorded JSON response body.
func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}
