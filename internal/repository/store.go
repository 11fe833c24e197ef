// Package repository implements the engine's Store over MySQL.  Each
// aggregate has its own repo type with Tx-suffixed methods, mirroring
// how the engine's atomic units map onto one database transaction.  Row
// locking is explicit: every mutation path reads its slot (and booking,
// and balance) rows with SELECT ... FOR UPDATE so concurrent requests
// for the same resource queue on the row lock instead of racing.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/avetra/appointment-booking/internal/engine"
	"github.com/avetra/appointment-booking/internal/model"
)

// mysqlTime renders a timestamp the way the schema stores it: DATETIME
// in UTC.
func mysqlTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

// Store bundles the aggregate repositories behind the engine.Store
// interface.
type Store struct {
	db       *sql.DB
	Slots    *SlotRepo
	Locks    *LockRepo
	Bookings *BookingRepo
	Packages *PackageRepo
	Services *ServiceRepo
	Audits   *AuditRepo
}

// NewStore wires the repositories to one database pool.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:       db,
		Slots:    NewSlotRepo(db),
		Locks:    NewLockRepo(db),
		Bookings: NewBookingRepo(db),
		Packages: NewPackageRepo(db),
		Services: NewServiceRepo(db),
		Audits:   NewAuditRepo(db),
	}
}

// InTx runs fn inside one database transaction.  Any error from fn
// rolls everything back so no partial ledger effect persists.
func (s *Store) InTx(ctx context.Context, fn func(tx engine.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&storeTx{s: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

// SlotSnapshot reads a slot and its currently locked quantity without
// row locks; mutations re-validate under FOR UPDATE anyway.
func (s *Store) SlotSnapshot(ctx context.Context, slotID uint64, now time.Time) (*model.Slot, uint32, error) {
	slot, err := s.Slots.Get(ctx, slotID)
	if err != nil {
		return nil, 0, err
	}
	locked, err := s.Locks.ActiveQuantity(ctx, slotID, 0, now)
	if err != nil {
		return nil, 0, err
	}
	return slot, locked, nil
}

// RemainingPackageCredit sums remaining credit for a service across the
// customer's active subscriptions.
func (s *Store) RemainingPackageCredit(ctx context.Context, tenantID, customerID, serviceID uint64) (uint32, []uint64, error) {
	return s.Packages.RemainingByCustomer(ctx, tenantID, customerID, serviceID)
}

// storeTx adapts the repositories to the engine.Tx interface for the
// lifetime of one transaction.
type storeTx struct {
	s  *Store
	tx *sql.Tx
}

func (t *storeTx) SlotForUpdate(ctx context.Context, slotID uint64) (*model.Slot, error) {
	return t.s.Slots.GetForUpdateTx(ctx, t.tx, slotID)
}

func (t *storeTx) UpdateSlotCounters(ctx context.Context, slot *model.Slot) error {
	return t.s.Slots.UpdateCountersTx(ctx, t.tx, slot)
}

func (t *storeTx) InsertLock(ctx context.Context, lock *model.ReservationLock) error {
	return t.s.Locks.InsertTx(ctx, t.tx, lock)
}

func (t *storeTx) LockByID(ctx context.Context, lockID uint64) (*model.ReservationLock, error) {
	return t.s.Locks.GetForUpdateTx(ctx, t.tx, lockID)
}

func (t *storeTx) DeleteLock(ctx context.Context, lockID uint64) error {
	return t.s.Locks.DeleteTx(ctx, t.tx, lockID)
}

func (t *storeTx) ActiveLockedQuantity(ctx context.Context, slotID, excludeLockID uint64, now time.Time) (uint32, error) {
	return t.s.Locks.ActiveQuantityTx(ctx, t.tx, slotID, excludeLockID, now)
}

func (t *storeTx) DeleteExpiredLocks(ctx context.Context, now time.Time) (int64, error) {
	return t.s.Locks.DeleteExpiredTx(ctx, t.tx, now)
}

func (t *storeTx) ServiceByID(ctx context.Context, serviceID uint64) (*model.Service, error) {
	return t.s.Services.GetTx(ctx, t.tx, serviceID)
}

func (t *storeTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	return t.s.Bookings.InsertTx(ctx, t.tx, b)
}

func (t *storeTx) BookingForUpdate(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	return t.s.Bookings.GetForUpdateTx(ctx, t.tx, bookingID)
}

func (t *storeTx) UpdateBookingStatus(ctx context.Context, bookingID uint64, status model.BookingStatus) error {
	return t.s.Bookings.UpdateStatusTx(ctx, t.tx, bookingID, status)
}

func (t *storeTx) UpdateBookingSlot(ctx context.Context, b *model.Booking) error {
	return t.s.Bookings.UpdateSlotTx(ctx, t.tx, b)
}

func (t *storeTx) InsertRescheduleAudit(ctx context.Context, a *model.RescheduleAudit) error {
	return t.s.Audits.InsertTx(ctx, t.tx, a)
}

func (t *storeTx) SubscriptionByID(ctx context.Context, subscriptionID uint64) (*model.PackageSubscription, error) {
	return t.s.Packages.SubscriptionTx(ctx, t.tx, subscriptionID)
}

func (t *storeTx) DeductCredit(ctx context.Context, subscriptionID, serviceID uint64, quantity uint32) (uint32, error) {
	return t.s.Packages.DeductTx(ctx, t.tx, subscriptionID, serviceID, quantity)
}

func (t *storeTx) MarkCreditExhausted(ctx context.Context, subscriptionID, serviceID uint64) (bool, error) {
	return t.s.Packages.MarkExhaustedTx(ctx, t.tx, subscriptionID, serviceID)
}

func (t *storeTx) RestoreCredit(ctx context.Context, subscriptionID, serviceID uint64, quantity uint32) error {
	return t.s.Packages.RestoreTx(ctx, t.tx, subscriptionID, serviceID, quantity)
}
