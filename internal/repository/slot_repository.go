package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avetra/appointment-booking/internal/engine"
	"github.com/avetra/appointment-booking/internal/model"
)

// SlotRepo provides data access to the slots table.  The capacity
// counters on a slot row are mutated exclusively through
// UpdateCountersTx, always after the row was read with
// GetForUpdateTx inside the same transaction.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo returns a SlotRepo bound to the given database.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

const slotColumns = `id, tenant_id, service_id, employee_id, date, starts_at, ends_at,
                     original_capacity, booked_count, available_capacity, is_available, is_overbooked`

func scanSlot(row *sql.Row) (*model.Slot, error) {
	var s model.Slot
	var employeeID sql.NullInt64
	err := row.Scan(
		&s.ID, &s.TenantID, &s.ServiceID, &employeeID, &s.Date, &s.StartsAt, &s.EndsAt,
		&s.OriginalCapacity, &s.BookedCount, &s.AvailableCapacity, &s.IsAvailable, &s.IsOverbooked,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, engine.ErrSlotNotFound
		}
		return nil, fmt.Errorf("scan slot: %w", err)
	}
	if employeeID.Valid {
		eid := uint64(employeeID.Int64)
		s.EmployeeID = &eid
	}
	return &s, nil
}

// Get reads a slot without locking it.  Used for availability
// snapshots only; every mutation path goes through GetForUpdateTx.
func (r *SlotRepo) Get(ctx context.Context, slotID uint64) (*model.Slot, error) {
	const q = `SELECT ` + slotColumns + ` FROM slots WHERE id = ?`
	return scanSlot(r.db.QueryRowContext(ctx, q, slotID))
}

// GetForUpdateTx reads a slot and takes its row lock for the duration
// of the transaction.  Two requests racing for the same slot's last
// seats serialize here: the second waiter re-reads the counters after
// the first committed, which is what prevents lost updates on
// booked_count.
func (r *SlotRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, slotID uint64) (*model.Slot, error) {
	const q = `SELECT ` + slotColumns + ` FROM slots WHERE id = ? FOR UPDATE`
	return scanSlot(tx.QueryRowContext(ctx, q, slotID))
}

// UpdateCountersTx persists the capacity counters after Reserve or
// Release recomputed them.  The caller must hold the row lock.
func (r *SlotRepo) UpdateCountersTx(ctx context.Context, tx *sql.Tx, s *model.Slot) error {
	const q = `UPDATE slots
               SET booked_count = ?, available_capacity = ?, is_overbooked = ?
               WHERE id = ?`
	if _, err := tx.ExecContext(ctx, q, s.BookedCount, s.AvailableCapacity, s.IsOverbooked, s.ID); err != nil {
		return fmt.Errorf("update slot counters: %w", err)
	}
	return nil
}
