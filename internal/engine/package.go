package engine

import (
	"context"

	"github.com/avetra/appointment-booking/internal/model"
)

// RemainingPackageCapacity reports how much prepaid credit a customer
// still holds for one service, and which subscriptions contribute.
type RemainingPackageCapacity struct {
	Remaining       uint32   `json:"remaining"`
	SubscriptionIDs []uint64 `json:"source_subscription_ids"`
}

// ResolveRemainingPackageCapacity sums remaining credit for a service
// across all of the customer's active subscriptions.  It is the
// read-only pre-check callers are expected to run before requesting
// package coverage; the guarded deduction inside the booking
// transaction remains the authority.
func (e *Engine) ResolveRemainingPackageCapacity(ctx context.Context, tenantID, customerID, serviceID uint64) (*RemainingPackageCapacity, error) {
	remaining, ids, err := e.store.RemainingPackageCredit(ctx, tenantID, customerID, serviceID)
	if err != nil {
		return nil, err
	}
	return &RemainingPackageCapacity{Remaining: remaining, SubscriptionIDs: ids}, nil
}

// SlotAvailability is the read-only capacity snapshot served to
// browsing clients.  LockedQuantity counts seats shielded by unexpired
// holds; those seats are unavailable to new requests even though
// booked_count does not include them.
type SlotAvailability struct {
	SlotID            uint64 `json:"slot_id"`
	OriginalCapacity  uint32 `json:"original_capacity"`
	BookedCount       uint32 `json:"booked_count"`
	AvailableCapacity uint32 `json:"available_capacity"`
	LockedQuantity    uint32 `json:"locked_quantity"`
	IsAvailable       bool   `json:"is_available"`
	IsOverbooked      bool   `json:"is_overbooked"`
}

// Availability returns the current capacity snapshot of a slot without
// taking row locks; it may be slightly stale under concurrency, which
// is why every mutation re-validates under the slot's row lock.
func (e *Engine) Availability(ctx context.Context, tenantID, slotID uint64) (*SlotAvailability, error) {
	slot, locked, err := e.store.SlotSnapshot(ctx, slotID, e.now())
	if err != nil {
		return nil, err
	}
	if slot.TenantID != tenantID {
		return nil, ErrTenantMismatch
	}
	return &SlotAvailability{
		SlotID:            slot.ID,
		OriginalCapacity:  slot.OriginalCapacity,
		BookedCount:       slot.BookedCount,
		AvailableCapacity: slot.AvailableCapacity,
		LockedQuantity:    locked,
		IsAvailable:       slot.IsAvailable,
		IsOverbooked:      slot.IsOverbooked,
	}, nil
}

// BookingByID loads one booking, enforcing tenant ownership.
func (e *Engine) BookingByID(ctx context.Context, tenantID, bookingID uint64) (*model.Booking, error) {
	var booking *model.Booking
	err := e.store.InTx(ctx, func(tx Tx) error {
		b, err := tx.BookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.TenantID != tenantID {
			return ErrTenantMismatch
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}
