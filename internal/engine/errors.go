// Error taxonomy of the reservation core.  Every failure is detected
// before any mutation and aborts the whole atomic unit; handlers pick
// the HTTP translation with errors.Is.  ErrInsufficientCapacity,
// ErrInsufficientCredit and ErrLockExpired are expected, retryable
// conditions; ErrTenantMismatch and ErrInputInconsistency indicate a
// caller bug and are logged as such at the handler layer.
package engine

import "errors"

// ErrSlotNotFound is returned when the referenced slot does not exist.
var ErrSlotNotFound = errors.New("slot not found")

// ErrBookingNotFound is returned when the referenced booking does not exist.
var ErrBookingNotFound = errors.New("booking not found")

// ErrSubscriptionNotFound is returned when the referenced package
// subscription does not exist.
var ErrSubscriptionNotFound = errors.New("package subscription not found")

// ErrLockNotFound is returned by stores when a reservation lock row is
// gone; the engine surfaces it to callers as ErrLockExpired because the
// sweeper removes expired rows.
var ErrLockNotFound = errors.New("reservation lock not found")

// ErrTenantMismatch is returned when a request references a resource
// belonging to a different tenant.
var ErrTenantMismatch = errors.New("resource belongs to a different tenant")

// ErrInsufficientCapacity is returned when the slot cannot seat the
// requested quantity once other sessions' unexpired holds are counted.
var ErrInsufficientCapacity = errors.New("insufficient slot capacity")

// ErrInsufficientCredit is returned when a package balance cannot cover
// the requested deduction at write time.
var ErrInsufficientCredit = errors.New("insufficient package credit")

// ErrLockExpired is returned when a presented hold has passed its
// expiry (or was already reclaimed); the client should re-select the
// slot and retry.
var ErrLockExpired = errors.New("hold expired, re-select your slot")

// ErrLockSessionMismatch is returned when a hold is presented by a
// session other than the one that acquired it.
var ErrLockSessionMismatch = errors.New("hold belongs to a different session")

// ErrInvalidTransition is returned when a status change is not
// permitted from the booking's current state.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrInputInconsistency is returned when the request contradicts
// itself, e.g. package-covered plus paid quantity not matching the
// visitor count, or duplicate slots in a bulk request.
var ErrInputInconsistency = errors.New("inconsistent request input")
