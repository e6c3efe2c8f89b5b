package fleet

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"

	"github.com/tuorg/fleetcare/internal/config"
	"github.com/tuorg/fleetcare/internal/models"
)

func newTestBusService() (*BusService, *memBusStore, *recordingNotifier, clockz.Clock) {
	store := newMemBusStore()
	notifier := &recordingNotifier{}
	clock := clockz.NewFakeClock()
	svc := NewBusService(store, notifier, NewKeyedMutex(), clock, config.DefaultRules(), "ops@fleetcare.local")
	return svc, store, notifier, clock
}

func TestBusService_Create(t *testing.T) {
	svc, _, notifier, clock := newTestBusService()
	today := toDate(clock.Now())

	bus, err := svc.Create(context.Background(), "ABC123", 0, &today)
	require.NoError(t, err)

	assert.Equal(t, "ABC123", bus.Plate)
	assert.Equal(t, int64(0), bus.KmCurrent)
	assert.Equal(t, models.StatusOK, bus.Status)
	require.NotNil(t, bus.NextMaintenanceDate)
	// time axis wins: today + 90 days is earlier than 50000 km at 120 km/day
	assert.Equal(t, addDays(today, 90), *bus.NextMaintenanceDate)
	assert.Empty(t, notifier.all())
}

func TestBusService_Create_Validation(t *testing.T) {
	svc, _, _, clock := newTestBusService()
	today := toDate(clock.Now())

	_, err := svc.Create(context.Background(), "   ", 0, &today)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(context.Background(), "ABC123", -1, &today)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(context.Background(), "ABC123", 200001, &today)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(context.Background(), "ABC123", 0, &today)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "ABC123", 0, &today)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestBusService_Create_NoDateIsProximo(t *testing.T) {
	// Missing maintenance history is incomplete data, never OK.
	svc, _, notifier, _ := newTestBusService()

	bus, err := svc.Create(context.Background(), "ABC123", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProximo, bus.Status)
	require.Len(t, notifier.all(), 1)
	assert.Equal(t, "Maintenance proximo", notifier.all()[0].Title)
}

func TestBusService_UpdateKm_Validation(t *testing.T) {
	svc, _, _, clock := newTestBusService()
	today := toDate(clock.Now())

	bus, err := svc.Create(context.Background(), "ABC123", 10000, &today)
	require.NoError(t, err)
	id := bus.ID.Hex()

	_, err = svc.UpdateKm(context.Background(), id, 9999)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UpdateKm(context.Background(), id, 200001)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UpdateKm(context.Background(), "60c72b2f9b1e8a5f4c8b4567", 10001)
	assert.ErrorIs(t, err, ErrNotFound)

	// equal mileage is allowed (non-decreasing)
	updated, err := svc.UpdateKm(context.Background(), id, 10000)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), updated.KmCurrent)
}

func TestBusService_ThresholdCrossings(t *testing.T) {
	// Create at 0 km -> OK; 45000 -> PROXIMO with one notice; 51000 ->
	// VENCIDO with another.
	svc, _, notifier, clock := newTestBusService()
	today := toDate(clock.Now())

	bus, err := svc.Create(context.Background(), "ABC123", 0, &today)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOK, bus.Status)
	assert.Empty(t, notifier.all())
	id := bus.ID.Hex()

	bus, err = svc.UpdateKm(context.Background(), id, 45000)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProximo, bus.Status)
	require.Len(t, notifier.all(), 1)
	assert.Equal(t, "Maintenance proximo", notifier.all()[0].Title)
	assert.Contains(t, notifier.all()[0].Content, "ABC123")
	assert.Contains(t, notifier.all()[0].Link, id)

	bus, err = svc.UpdateKm(context.Background(), id, 51000)
	require.NoError(t, err)
	assert.Equal(t, models.StatusVencido, bus.Status)
	require.Len(t, notifier.all(), 2)
	assert.Equal(t, "Maintenance vencido", notifier.all()[1].Title)
}

func TestBusService_ForcedVencidoWhenOverdue(t *testing.T) {
	// Elapsed days beyond the full threshold force VENCIDO with the next
	// maintenance due today, regardless of mileage.
	svc, _, _, clock := newTestBusService()
	today := toDate(clock.Now())

	recent := today
	bus, err := svc.Create(context.Background(), "ABC123", 0, &recent)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOK, bus.Status)

	stale := addDays(today, -91)
	bus, err = svc.UpdateLastMaintenance(context.Background(), bus.ID.Hex(), stale)
	require.NoError(t, err)
	assert.Equal(t, models.StatusVencido, bus.Status)
	require.NotNil(t, bus.NextMaintenanceDate)
	assert.Equal(t, today, *bus.NextMaintenanceDate)
}

func TestBusService_UpdateLastMaintenance_TooOld(t *testing.T) {
	svc, _, _, clock := newTestBusService()
	today := toDate(clock.Now())

	bus, err := svc.Create(context.Background(), "ABC123", 0, &today)
	require.NoError(t, err)

	_, err = svc.UpdateLastMaintenance(context.Background(), bus.ID.Hex(), addDays(today, -366))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UpdateLastMaintenance(context.Background(), bus.ID.Hex(), addDays(today, -365))
	assert.NoError(t, err)
}

func TestBusService_RecalculationIsIdempotent(t *testing.T) {
	svc, _, _, clock := newTestBusService()
	today := toDate(clock.Now())

	bus, err := svc.Create(context.Background(), "ABC123", 46000, &today)
	require.NoError(t, err)

	first, err := svc.UpdateKm(context.Background(), bus.ID.Hex(), 46000)
	require.NoError(t, err)
	second, err := svc.UpdateKm(context.Background(), bus.ID.Hex(), 46000)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.NextMaintenanceDate, second.NextMaintenanceDate)
}

func TestBusService_UpdateStatus(t *testing.T) {
	svc, _, notifier, clock := newTestBusService()
	today := toDate(clock.Now())

	bus, err := svc.Create(context.Background(), "ABC123", 0, &today)
	require.NoError(t, err)
	id := bus.ID.Hex()

	_, err = svc.UpdateStatus(context.Background(), id, "RETIRED", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	bus, err = svc.UpdateStatus(context.Background(), id, models.StatusFueraServicio, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFueraServicio, bus.Status)
	require.Len(t, notifier.all(), 1)
	assert.Equal(t, "Bus marked out of service", notifier.all()[0].Title)

	// A terminal bus keeps its status through mileage updates.
	bus, err = svc.UpdateKm(context.Background(), id, 51000)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFueraServicio, bus.Status)
	assert.Equal(t, int64(51000), bus.KmCurrent)
	assert.Len(t, notifier.all(), 1) // no threshold notice for terminal buses
}

func TestBusService_UpdateStatus_Replaced(t *testing.T) {
	svc, _, notifier, clock := newTestBusService()
	today := toDate(clock.Now())

	bus, err := svc.Create(context.Background(), "ABC123", 0, &today)
	require.NoError(t, err)

	// The replacement notice goes out even without a replacement id.
	bus, err = svc.UpdateStatus(context.Background(), bus.ID.Hex(), models.StatusReemplazado, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReemplazado, bus.Status)
	require.Len(t, notifier.all(), 1)
	assert.Equal(t, "Bus replaced", notifier.all()[0].Title)
}

func TestBusService_UpdateGeneral(t *testing.T) {
	svc, _, _, clock := newTestBusService()
	today := toDate(clock.Now())

	bus, err := svc.Create(context.Background(), "ABC123", 10000, &today)
	require.NoError(t, err)
	other, err := svc.Create(context.Background(), "XYZ789", 0, &today)
	require.NoError(t, err)

	_, err = svc.UpdateGeneral(context.Background(), bus.ID.Hex(), "XYZ789", 10000, nil, "", "")
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.UpdateGeneral(context.Background(), bus.ID.Hex(), "ABC123", 9000, nil, "", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	updated, err := svc.UpdateGeneral(context.Background(), bus.ID.Hex(), "DEF456", 12000, nil, "EXPRESS 7", "new brakes")
	require.NoError(t, err)
	assert.Equal(t, "DEF456", updated.Plate)
	assert.Equal(t, int64(12000), updated.KmCurrent)
	assert.Equal(t, "EXPRESS 7", updated.Alias)
	assert.Equal(t, "new brakes", updated.Notes)
	assert.Equal(t, models.StatusOK, updated.Status)

	_ = other
}

func TestBusService_Delete(t *testing.T) {
	svc, _, _, clock := newTestBusService()
	today := toDate(clock.Now())

	bus, err := svc.Create(context.Background(), "ABC123", 0, &today)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), bus.ID.Hex()))
	assert.ErrorIs(t, svc.Delete(context.Background(), bus.ID.Hex()), ErrNotFound)
}

func TestBusService_NotifierFailureDoesNotFailMutation(t *testing.T) {
	store := newMemBusStore()
	notifier := &recordingNotifier{failWith: errors.New("sink down")}
	clock := clockz.NewFakeClock()
	svc := NewBusService(store, notifier, NewKeyedMutex(), clock, config.DefaultRules(), "ops@fleetcare.local")
	today := toDate(clock.Now())

	bus, err := svc.Create(context.Background(), "ABC123", 0, &today)
	require.NoError(t, err)

	bus, err = svc.UpdateKm(context.Background(), bus.ID.Hex(), 46000)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProximo, bus.Status)

	// The mutation is durable despite the failing sink.
	persisted, err := store.FindBusByID(context.Background(), bus.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, int64(46000), persisted.KmCurrent)
}

func TestBusService_ConcurrentKmUpdatesStayMonotonic(t *testing.T) {
	svc, store, _, clock := newTestBusService()
	today := toDate(clock.Now())

	bus, err := svc.Create(context.Background(), "ABC123", 0, &today)
	require.NoError(t, err)
	id := bus.ID.Hex()

	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		go func(km int64) {
			defer func() { done <- struct{}{} }()
			// Rejections are fine; interleavings that lose the monotonic
			// invariant are not.
			_, _ = svc.UpdateKm(context.Background(), id, km)
		}(int64(1000 * (i + 1)))
	}
	for i := 0; i < 20; i++ {
		<-done
	}

	final, err := store.FindBusByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), final.KmCurrent)
}
