package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avetra/appointment-booking/internal/engine"
	"github.com/avetra/appointment-booking/internal/model"
)

// LockRepo provides data access to the reservation_locks table.  Rows
// are never updated in place: a hold is inserted once and later
// deleted, either by the booking that consumes it, by an explicit
// release, or by the sweeper once expired.  All expiry comparisons use
// the timestamp the engine passes in, so tests can drive the clock.
type LockRepo struct {
	db *sql.DB
}

// NewLockRepo returns a LockRepo bound to the given database.
func NewLockRepo(db *sql.DB) *LockRepo { return &LockRepo{db: db} }

// InsertTx creates a hold and populates its generated id.
func (r *LockRepo) InsertTx(ctx context.Context, tx *sql.Tx, l *model.ReservationLock) error {
	const q = `INSERT INTO reservation_locks (tenant_id, slot_id, session_id, quantity, expires_at, created_at)
               VALUES (?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		l.TenantID, l.SlotID, l.SessionID, l.Quantity, mysqlTime(l.ExpiresAt), mysqlTime(l.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert reservation lock: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reservation lock id: %w", err)
	}
	l.ID = uint64(id)
	return nil
}

// GetForUpdateTx loads a hold under its row lock so a booking consuming
// it and the sweeper deleting it serialize on the row.
func (r *LockRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, lockID uint64) (*model.ReservationLock, error) {
	const q = `SELECT id, tenant_id, slot_id, session_id, quantity, expires_at, created_at
               FROM reservation_locks WHERE id = ? FOR UPDATE`
	var l model.ReservationLock
	err := tx.QueryRowContext(ctx, q, lockID).Scan(
		&l.ID, &l.TenantID, &l.SlotID, &l.SessionID, &l.Quantity, &l.ExpiresAt, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, engine.ErrLockNotFound
		}
		return nil, fmt.Errorf("get reservation lock: %w", err)
	}
	return &l, nil
}

// DeleteTx removes a hold.  Deleting an already-removed hold is not an
// error; the sweeper and consuming transactions race benignly.
func (r *LockRepo) DeleteTx(ctx context.Context, tx *sql.Tx, lockID uint64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM reservation_locks WHERE id = ?`, lockID); err != nil {
		return fmt.Errorf("delete reservation lock: %w", err)
	}
	return nil
}

const activeQuantityQuery = `SELECT COALESCE(SUM(quantity), 0)
        FROM reservation_locks
        WHERE slot_id = ? AND expires_at > ? AND id <> ?`

// ActiveQuantityTx sums unexpired hold quantities on a slot, excluding
// the hold the current request is consuming (pass 0 to exclude none).
// Expired rows are ignored even before the sweeper removes them, which
// is why a stale hold never blocks other customers past its TTL.
func (r *LockRepo) ActiveQuantityTx(ctx context.Context, tx *sql.Tx, slotID, excludeLockID uint64, now time.Time) (uint32, error) {
	var sum uint32
	err := tx.QueryRowContext(ctx, activeQuantityQuery, slotID, mysqlTime(now), excludeLockID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum active locks: %w", err)
	}
	return sum, nil
}

// ActiveQuantity is the lock-free variant used by availability
// snapshots.
func (r *LockRepo) ActiveQuantity(ctx context.Context, slotID, excludeLockID uint64, now time.Time) (uint32, error) {
	var sum uint32
	err := r.db.QueryRowContext(ctx, activeQuantityQuery, slotID, mysqlTime(now), excludeLockID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum active locks: %w", err)
	}
	return sum, nil
}

// DeleteExpiredTx removes every hold past its expiry and reports how
// many rows went away.
func (r *LockRepo) DeleteExpiredTx(ctx context.Context, tx *sql.Tx, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM reservation_locks WHERE expires_at <= ?`, mysqlTime(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired locks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expired locks affected: %w", err)
	}
	return n, nil
}
