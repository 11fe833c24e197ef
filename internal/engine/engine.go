// Package engine implements the slot reservation and capacity control
// core: the capacity ledger, reservation lock manager, booking
// transaction processor, package credit ledger and booking lifecycle
// manager.  Every externally triggered operation runs as one atomic
// unit against the Store, with the affected slot (and balance) rows
// locked for the duration of the unit so concurrent requests for the
// same slot serialize instead of observing stale availability.
//
// The engine is deliberately storage-agnostic: it sees only the Store
// and Tx interfaces, so the lock-then-mutate discipline stays portable
// across backends.
package engine

import (
	"context"
	"time"

	"github.com/avetra/appointment-booking/internal/model"
	"github.com/avetra/appointment-booking/internal/queue"
)

// DefaultHoldTTL is how long a reservation lock shields capacity for
// its session before it becomes unusable.
const DefaultHoldTTL = 2 * time.Minute

// Store opens atomic units of work and serves read-only queries that
// need no row locking.
type Store interface {
	// InTx runs fn inside one transaction.  When fn returns an error
	// the transaction is rolled back and no partial effect persists.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// SlotSnapshot returns a slot plus the quantity currently shielded
	// by unexpired reservation locks, without taking row locks.
	SlotSnapshot(ctx context.Context, slotID uint64, now time.Time) (*model.Slot, uint32, error)

	// RemainingPackageCredit sums the remaining credit for a service
	// across all of a customer's active subscriptions and reports which
	// subscriptions contributed.
	RemainingPackageCredit(ctx context.Context, tenantID, customerID, serviceID uint64) (uint32, []uint64, error)
}

// Tx is the set of operations available inside one atomic unit.  The
// *ForUpdate reads lock the underlying row until the unit commits or
// rolls back.
type Tx interface {
	SlotForUpdate(ctx context.Context, slotID uint64) (*model.Slot, error)
	UpdateSlotCounters(ctx context.Context, slot *model.Slot) error

	InsertLock(ctx context.Context, lock *model.ReservationLock) error
	LockByID(ctx context.Context, lockID uint64) (*model.ReservationLock, error)
	DeleteLock(ctx context.Context, lockID uint64) error
	// ActiveLockedQuantity sums the quantities of unexpired locks on a
	// slot, excluding the lock the current request is consuming.
	ActiveLockedQuantity(ctx context.Context, slotID, excludeLockID uint64, now time.Time) (uint32, error)
	DeleteExpiredLocks(ctx context.Context, now time.Time) (int64, error)

	ServiceByID(ctx context.Context, serviceID uint64) (*model.Service, error)

	InsertBooking(ctx context.Context, b *model.Booking) error
	BookingForUpdate(ctx context.Context, bookingID uint64) (*model.Booking, error)
	UpdateBookingStatus(ctx context.Context, bookingID uint64, status model.BookingStatus) error
	UpdateBookingSlot(ctx context.Context, b *model.Booking) error
	InsertRescheduleAudit(ctx context.Context, a *model.RescheduleAudit) error

	SubscriptionByID(ctx context.Context, subscriptionID uint64) (*model.PackageSubscription, error)
	// DeductCredit decrements a balance only when enough credit
	// remains; the check and the decrement are one guarded step.  It
	// returns the remaining quantity after the deduction or
	// ErrInsufficientCredit without touching the balance.
	DeductCredit(ctx context.Context, subscriptionID, serviceID uint64, quantity uint32) (uint32, error)
	// MarkCreditExhausted sets the one-time exhaustion marker and
	// reports whether this call was the one that set it.
	MarkCreditExhausted(ctx context.Context, subscriptionID, serviceID uint64) (bool, error)
	RestoreCredit(ctx context.Context, subscriptionID, serviceID uint64, quantity uint32) error
}

// EventPublisher receives domain events after the transaction that
// produced them has committed.  Publishing is best-effort: failures are
// logged by the engine and never fail the booking.
type EventPublisher interface {
	PublishBookingCreated(ctx context.Context, ev queue.BookingCreatedEvent) error
	PublishBookingCancelled(ctx context.Context, ev queue.BookingCancelledEvent) error
	PublishBookingRescheduled(ctx context.Context, ev queue.BookingRescheduledEvent) error
	PublishPackageExhausted(ctx context.Context, ev queue.PackageExhaustedEvent) error
}

// Engine coordinates the booking components over one Store.
type Engine struct {
	store   Store
	events  EventPublisher
	holdTTL time.Duration
	now     func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithHoldTTL overrides the default reservation lock TTL.
func WithHoldTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.holdTTL = d
		}
	}
}

// WithClock injects a time source, used by tests to drive expiry.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithEventPublisher attaches a post-commit event sink.
func WithEventPublisher(p EventPublisher) Option {
	return func(e *Engine) { e.events = p }
}

// New constructs an Engine around the given store.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		holdTTL: DefaultHoldTTL,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
