package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avetra/appointment-booking/internal/model"
)

func isLockGone(err error) bool { return errors.Is(err, ErrLockNotFound) }

// AcquireHold creates a short-lived reservation lock shielding quantity
// seats on a slot for one checkout session.  The acquire is itself a
// race participant, so the slot row is locked and availability is
// re-read under that lock, with every other session's unexpired holds
// subtracted before the new hold is admitted.
func (e *Engine) AcquireHold(ctx context.Context, tenantID, slotID uint64, sessionID string, quantity uint32) (*model.ReservationLock, error) {
	if quantity == 0 || sessionID == "" {
		return nil, fmt.Errorf("%w: hold requires a session and a positive quantity", ErrInputInconsistency)
	}
	now := e.now()
	lock := &model.ReservationLock{
		TenantID:  tenantID,
		SlotID:    slotID,
		SessionID: sessionID,
		Quantity:  quantity,
		ExpiresAt: now.Add(e.holdTTL),
		CreatedAt: now,
	}
	err := e.store.InTx(ctx, func(tx Tx) error {
		slot, err := tx.SlotForUpdate(ctx, slotID)
		if err != nil {
			return err
		}
		if slot.TenantID != tenantID {
			return ErrTenantMismatch
		}
		lockedByOthers, err := tx.ActiveLockedQuantity(ctx, slotID, 0, now)
		if err != nil {
			return err
		}
		if !slot.CanReserve(quantity, lockedByOthers) {
			return fmt.Errorf("slot %d: %w", slotID, ErrInsufficientCapacity)
		}
		return tx.InsertLock(ctx, lock)
	})
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// ReleaseHold deletes a hold without touching the capacity ledger:
// holds are advisory pre-commitment, only bookings alter booked_count.
// Releasing a hold that is already gone is a no-op, matching the
// sweeper's idempotent reclamation.
func (e *Engine) ReleaseHold(ctx context.Context, tenantID, lockID uint64) error {
	return e.store.InTx(ctx, func(tx Tx) error {
		lock, err := tx.LockByID(ctx, lockID)
		if err != nil {
			if isLockGone(err) {
				return nil
			}
			return err
		}
		if lock.TenantID != tenantID {
			return ErrTenantMismatch
		}
		return tx.DeleteLock(ctx, lockID)
	})
}

// validateHold checks a presented hold against the booking request.
// A missing row and a passed expiry are the same condition to the
// caller: the hold is no longer usable and the booking is retryable.
func (e *Engine) validateHold(ctx context.Context, tx Tx, slotID uint64, holdID uint64, sessionID string, now time.Time) (*model.ReservationLock, error) {
	lock, err := tx.LockByID(ctx, holdID)
	if err != nil {
		if isLockGone(err) {
			return nil, ErrLockExpired
		}
		return nil, err
	}
	if lock.SlotID != slotID {
		return nil, fmt.Errorf("%w: hold %d is for a different slot", ErrInputInconsistency, holdID)
	}
	if lock.SessionID != sessionID {
		return nil, ErrLockSessionMismatch
	}
	if lock.Expired(now) {
		return nil, ErrLockExpired
	}
	return lock, nil
}
