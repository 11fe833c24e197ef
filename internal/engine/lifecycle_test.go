package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avetra/appointment-booking/internal/engine"
	"github.com/avetra/appointment-booking/internal/model"
)

func mustCreate(t *testing.T, eng *engine.Engine, in engine.CreateBookingInput) *model.Booking {
	t.Helper()
	b, err := eng.CreateBooking(context.Background(), in)
	require.NoError(t, err)
	return b
}

func TestConfirmKeepsCapacity(t *testing.T) {
	store := newFakeStore()
	seedSlot(store, 1, 10, 5)
	eng := engineWith(store, newTestClock())
	b := mustCreate(t, eng, createInput(1, 2))

	updated, err := eng.ChangeStatus(context.Background(), 10, b.ID, model.BookingConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, updated.Status)

	// Confirmation is a label change: the seats stay taken.
	assert.Equal(t, uint32(2), store.slots[1].BookedCount)
}

func TestCancelReleasesCapacityAndRestoresCredit(t *testing.T) {
	store := newFakeStore()
	seedSlot(store, 1, 10, 5)
	store.addSubscription(
		model.PackageSubscription{ID: 3, TenantID: 10, CustomerID: 7, Active: true},
		model.PackageCreditBalance{ServiceID: 1, OriginalQuantity: 5, RemainingQuantity: 5},
	)
	pub := &recordingPublisher{}
	eng := engineWith(store, newTestClock(), engine.WithEventPublisher(pub))

	in := createInput(1, 3)
	in.SubscriptionID = 3
	in.PackageCovered = 2
	b := mustCreate(t, eng, in)
	require.Equal(t, uint32(3), store.balances[balanceKey{3, 1}].RemainingQuantity)

	updated, err := eng.ChangeStatus(context.Background(), 10, b.ID, model.BookingCancelled)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, updated.Status)

	assert.Equal(t, uint32(0), store.slots[1].BookedCount)
	assert.Equal(t, uint32(5), store.slots[1].AvailableCapacity)

	bal := store.balances[balanceKey{3, 1}]
	assert.Equal(t, uint32(5), bal.RemainingQuantity)
	assert.Equal(t, uint32(0), bal.UsedQuantity)

	require.Len(t, pub.cancelled, 1)
	assert.Equal(t, uint32(2), pub.cancelled[0].CreditRestored)
}

func TestCompleteReleasesCapacityButKeepsCreditSpent(t *testing.T) {
	store := newFakeStore()
	seedSlot(store, 1, 10, 5)
	store.addSubscription(
		model.PackageSubscription{ID: 3, TenantID: 10, CustomerID: 7, Active: true},
		model.PackageCreditBalance{ServiceID: 1, OriginalQuantity: 5, RemainingQuantity: 5},
	)
	eng := engineWith(store, newTestClock())

	in := createInput(1, 2)
	in.SubscriptionID = 3
	in.PackageCovered = 2
	b := mustCreate(t, eng, in)

	_, err := eng.ChangeStatus(context.Background(), 10, b.ID, model.BookingCompleted)
	require.NoError(t, err)

	// The visit happened: the slot frees up, the credit stays consumed.
	assert.Equal(t, uint32(0), store.slots[1].BookedCount)
	bal := store.balances[balanceKey{3, 1}]
	assert.Equal(t, uint32(3), bal.RemainingQuantity)
	assert.Equal(t, uint32(2), bal.UsedQuantity)
}

func TestRestoreDoesNotRearmExhaustionMarker(t *testing.T) {
	store := newFakeStore()
	seedSlot(store, 1, 10, 5)
	store.addSubscription(
		model.PackageSubscription{ID: 3, TenantID: 10, CustomerID: 7, Active: true},
		model.PackageCreditBalance{ServiceID: 1, OriginalQuantity: 1, RemainingQuantity: 1},
	)
	pub := &recordingPublisher{}
	eng := engineWith(store, newTestClock(), engine.WithEventPublisher(pub))

	in := createInput(1, 1)
	in.SubscriptionID = 3
	in.PackageCovered = 1
	b := mustCreate(t, eng, in)
	require.Len(t, pub.exhausted, 1)

	_, err := eng.ChangeStatus(context.Background(), 10, b.ID, model.BookingCancelled)
	require.NoError(t, err)

	// Credit came back but the one-time marker stays set, so spending it
	// again does not fire a second notification.
	bal := store.balances[balanceKey{3, 1}]
	require.Equal(t, uint32(1), bal.RemainingQuantity)
	assert.True(t, bal.ExhaustedNotified)

	mustCreate(t, eng, in)
	assert.Len(t, pub.exhausted, 1)
}

func TestInvalidTransitionsRejected(t *testing.T) {
	store := newFakeStore()
	seedSlot(store, 1, 10, 5)
	eng := engineWith(store, newTestClock())
	b := mustCreate(t, eng, createInput(1, 1))

	_, err := eng.ChangeStatus(context.Background(), 10, b.ID, model.BookingPending)
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)

	_, err = eng.ChangeStatus(context.Background(), 10, b.ID, model.BookingStatus("ARCHIVED"))
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)

	_, err = eng.ChangeStatus(context.Background(), 10, b.ID, model.BookingCancelled)
	require.NoError(t, err)

	// Terminal states reject everything, including re-cancellation, so
	// capacity cannot be released twice.
	for _, next := range []model.BookingStatus{
		model.BookingConfirmed, model.BookingCancelled, model.BookingCompleted,
	} {
		_, err = eng.ChangeStatus(context.Background(), 10, b.ID, next)
		assert.ErrorIs(t, err, engine.ErrInvalidTransition)
	}
	assert.Equal(t, uint32(0), store.slots[1].BookedCount)
}

func TestChangeStatusTenantAndExistence(t *testing.T) {
	store := newFakeStore()
	seedSlot(store, 1, 10, 5)
	eng := engineWith(store, newTestClock())
	b := mustCreate(t, eng, createInput(1, 1))

	_, err := eng.ChangeStatus(context.Background(), 99, b.ID, model.BookingConfirmed)
	assert.ErrorIs(t, err, engine.ErrTenantMismatch)

	_, err = eng.ChangeStatus(context.Background(), 10, 777, model.BookingConfirmed)
	assert.ErrorIs(t, err, engine.ErrBookingNotFound)
}

func TestRescheduleMovesCapacityBetweenSlots(t *testing.T) {
	store := newFakeStore()
	seedSlot(store, 1, 10, 5)
	store.addSlot(model.Slot{ID: 2, TenantID: 10, ServiceID: 1, OriginalCapacity: 4, IsAvailable: true})
	pub := &recordingPublisher{}
	eng := engineWith(store, newTestClock(), engine.WithEventPublisher(pub))
	b := mustCreate(t, eng, createInput(1, 2))
	oldToken := b.TicketToken

	moved, priceChanged, err := eng.Reschedule(context.Background(), 10, b.ID, 2)
	require.NoError(t, err)
	assert.False(t, priceChanged)
	assert.Equal(t, uint64(2), moved.SlotID)
	assert.NotEqual(t, oldToken, moved.TicketToken)

	// Seats moved, none were created or lost.
	assert.Equal(t, uint32(0), store.slots[1].BookedCount)
	assert.Equal(t, uint32(2), store.slots[2].BookedCount)

	require.Len(t, store.audits, 1)
	audit := store.audits[0]
	assert.Equal(t, uint64(1), audit.OldSlotID)
	assert.Equal(t, uint64(2), audit.NewSlotID)
	assert.Equal(t, uint32(10000), audit.OldPriceCents)
	assert.Equal(t, uint32(10000), audit.NewPriceCents)

	require.Len(t, pub.rescheduled, 1)
	assert.False(t, pub.rescheduled[0].PriceChanged)
}

func TestRescheduleAcrossServicesResyncsAndReprices(t *testing.T) {
	store := newFakeStore()
	seedSlot(store, 1, 10, 5)
	employee := uint64(42)
	store.addService(model.Service{ID: 2, TenantID: 10, Name: "deluxe massage", PriceCents: 9000, EmployeeScheduled: true})
	store.addSlot(model.Slot{ID: 2, TenantID: 10, ServiceID: 2, EmployeeID: &employee, OriginalCapacity: 4, IsAvailable: true})
	eng := engineWith(store, newTestClock())
	b := mustCreate(t, eng, createInput(1, 2))

	moved, priceChanged, err := eng.Reschedule(context.Background(), 10, b.ID, 2)
	require.NoError(t, err)
	assert.True(t, priceChanged)
	assert.Equal(t, uint64(2), moved.ServiceID)
	assert.Equal(t, uint32(18000), moved.PriceCents)
	require.NotNil(t, moved.EmployeeID)
	assert.Equal(t, employee, *moved.EmployeeID)
}

func TestRescheduleHonorsTargetSlotHolds(t *testing.T) {
	store := newFakeStore()
	seedSlot(store, 1, 10, 5)
	store.addSlot(model.Slot{ID: 2, TenantID: 10, ServiceID: 1, OriginalCapacity: 3, IsAvailable: true})
	eng := engineWith(store, newTestClock())
	b := mustCreate(t, eng, createInput(1, 2))

	_, err := eng.AcquireHold(context.Background(), 10, 2, "other-session", 2)
	require.NoError(t, err)

	_, _, err = eng.Reschedule(context.Background(), 10, b.ID, 2)
	assert.ErrorIs(t, err, engine.ErrInsufficientCapacity)

	// The failed move left both slots as they were.
	assert.Equal(t, uint32(2), store.slots[1].BookedCount)
	assert.Equal(t, uint32(0), store.slots[2].BookedCount)
}

func TestRescheduleRejections(t *testing.T) {
	store := newFakeStore()
	seedSlot(store, 1, 10, 5)
	store.addSlot(model.Slot{ID: 2, TenantID: 99, ServiceID: 1, OriginalCapacity: 4, IsAvailable: true})
	eng := engineWith(store, newTestClock())
	b := mustCreate(t, eng, createInput(1, 2))

	// Same slot.
	_, _, err := eng.Reschedule(context.Background(), 10, b.ID, 1)
	assert.ErrorIs(t, err, engine.ErrInputInconsistency)

	// Target slot owned by another tenant.
	_, _, err = eng.Reschedule(context.Background(), 10, b.ID, 2)
	assert.ErrorIs(t, err, engine.ErrTenantMismatch)

	// Missing target slot.
	_, _, err = eng.Reschedule(context.Background(), 10, b.ID, 77)
	assert.ErrorIs(t, err, engine.ErrSlotNotFound)

	// Terminal booking.
	_, err = eng.ChangeStatus(context.Background(), 10, b.ID, model.BookingCancelled)
	require.NoError(t, err)
	_, _, err = eng.Reschedule(context.Background(), 10, b.ID, 2)
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)
}

func TestAvailabilitySnapshot(t *testing.T) {
	store := newFakeStore()
	seedSlot(store, 1, 10, 5)
	eng := engineWith(store, newTestClock())

	mustCreate(t, eng, createInput(1, 2))
	_, err := eng.AcquireHold(context.Background(), 10, 1, "sess-a", 1)
	require.NoError(t, err)

	snap, err := eng.Availability(context.Background(), 10, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), snap.OriginalCapacity)
	assert.Equal(t, uint32(2), snap.BookedCount)
	assert.Equal(t, uint32(3), snap.AvailableCapacity)
	assert.Equal(t, uint32(1), snap.LockedQuantity)
	assert.True(t, snap.IsAvailable)

	_, err = eng.Availability(context.Background(), 99, 1)
	assert.ErrorIs(t, err, engine.ErrTenantMismatch)
}

func TestResolveRemainingPackageCapacity(t *testing.T) {
	store := newFakeStore()
	seedSlot(store, 1, 10, 5)
	store.addSubscription(
		model.PackageSubscription{ID: 3, TenantID: 10, CustomerID: 7, Active: true},
		model.PackageCreditBalance{ServiceID: 1, OriginalQuantity: 5, RemainingQuantity: 2},
	)
	store.addSubscription(
		model.PackageSubscription{ID: 4, TenantID: 10, CustomerID: 7, Active: true},
		model.PackageCreditBalance{ServiceID: 1, OriginalQuantity: 5, RemainingQuantity: 3},
	)
	store.addSubscription( // inactive, must not count
		model.PackageSubscription{ID: 5, TenantID: 10, CustomerID: 7, Active: false},
		model.PackageCreditBalance{ServiceID: 1, OriginalQuantity: 5, RemainingQuantity: 5},
	)
	eng := engineWith(store, newTestClock())

	capacity, err := eng.ResolveRemainingPackageCapacity(context.Background(), 10, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), capacity.Remaining)
	assert.ElementsMatch(t, []uint64{3, 4}, capacity.SubscriptionIDs)
}
