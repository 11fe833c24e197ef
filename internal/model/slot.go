package model

import "time"

// Slot is a single bookable interval for one service, optionally tied to
// one employee, on one date.  The capacity counters on the slot are the
// single source of truth for remaining seats: every booking creation,
// cancellation and reschedule mutates them inside the same transaction
// as the booking write.
//
// Fields:
//  ID                – primary key identifier.
//  TenantID          – owning tenant.
//  ServiceID         – service offered in this slot.
//  EmployeeID        – employee assigned to the slot (nullable).
//  Date              – calendar date of the slot.
//  StartsAt          – interval start.
//  EndsAt            – interval end.
//  OriginalCapacity  – fixed seat ceiling declared at generation time.
//  BookedCount       – sum of visitor counts of all non-terminal bookings.
//  AvailableCapacity – derived: max(0, OriginalCapacity - BookedCount).
//  IsAvailable       – manual disable flag set by the provider.
//  IsOverbooked      – derived diagnostic: BookedCount > OriginalCapacity.
type Slot struct {
	ID                uint64    // slots.id
	TenantID          uint64    // slots.tenant_id
	ServiceID         uint64    // slots.service_id
	EmployeeID        *uint64   // slots.employee_id (nullable)
	Date              time.Time // slots.date
	StartsAt          time.Time // slots.starts_at
	EndsAt            time.Time // slots.ends_at
	OriginalCapacity  uint32    // slots.original_capacity
	BookedCount       uint32    // slots.booked_count
	AvailableCapacity uint32    // slots.available_capacity
	IsAvailable       bool      // slots.is_available
	IsOverbooked      bool      // slots.is_overbooked
}

// Recompute refreshes the derived capacity fields from OriginalCapacity
// and BookedCount.  It must be called after every BookedCount mutation
// so the invariant available == max(0, original - booked) holds at rest.
func (s *Slot) Recompute() {
	if s.BookedCount >= s.OriginalCapacity {
		s.AvailableCapacity = 0
	} else {
		s.AvailableCapacity = s.OriginalCapacity - s.BookedCount
	}
	s.IsOverbooked = s.BookedCount > s.OriginalCapacity
}

// CanReserve reports whether quantity seats can be taken once the given
// amount of capacity locked by other sessions is subtracted from the
// remaining availability.
func (s *Slot) CanReserve(quantity, lockedByOthers uint32) bool {
	if !s.IsAvailable {
		return false
	}
	if s.AvailableCapacity < lockedByOthers {
		return false
	}
	return s.AvailableCapacity-lockedByOthers >= quantity
}

// Reserve consumes quantity seats and recomputes the derived fields.
// Callers must have verified CanReserve under the slot's row lock first.
func (s *Slot) Reserve(quantity uint32) {
	s.BookedCount += quantity
	s.Recompute()
}

// Release returns quantity seats to the slot.  BookedCount never
// underflows below zero and AvailableCapacity never exceeds
// OriginalCapacity because both are derived through Recompute.
func (s *Slot) Release(quantity uint32) {
	if quantity >= s.BookedCount {
		s.BookedCount = 0
	} else {
		s.BookedCount -= quantity
	}
	s.Recompute()
}
