package model

import "time"

// ReservationLock is a short-lived hold that reserves capacity for a
// checkout session before a booking is durably created.  Holds are
// advisory: they never change a slot's BookedCount, they only subtract
// from what other sessions may reserve.  A hold is consumed (deleted)
// when its booking is created, released explicitly, or reclaimed by the
// background sweeper once expired.  Expiry checks are time-based, not
// existence-based, so a hold past its ExpiresAt stops counting against
// capacity even before the sweeper removes the row.
//
// Fields:
//  ID        – primary key identifier.
//  TenantID  – owning tenant.
//  SlotID    – slot whose capacity is being held.
//  SessionID – checkout session that owns the hold.
//  Quantity  – number of seats held.
//  ExpiresAt – absolute expiry (fixed TTL from creation).
//  CreatedAt – when the hold was created.
type ReservationLock struct {
	ID        uint64    // reservation_locks.id
	TenantID  uint64    // reservation_locks.tenant_id
	SlotID    uint64    // reservation_locks.slot_id
	SessionID string    // reservation_locks.session_id
	Quantity  uint32    // reservation_locks.quantity
	ExpiresAt time.Time // reservation_locks.expires_at
	CreatedAt time.Time // reservation_locks.created_at
}

// Expired reports whether the hold is no longer usable at the given time.
func (l *ReservationLock) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}
