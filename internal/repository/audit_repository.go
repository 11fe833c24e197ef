package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/avetra/appointment-booking/internal/model"
)

// AuditRepo provides data access to the booking_reschedules table.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo returns an AuditRepo bound to the given database.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// InsertTx records one reschedule in the same transaction that moved
// the booking, so the audit trail never disagrees with the ledger.
func (r *AuditRepo) InsertTx(ctx context.Context, tx *sql.Tx, a *model.RescheduleAudit) error {
	const q = `INSERT INTO booking_reschedules
               (booking_id, old_slot_id, new_slot_id, old_price_cents, new_price_cents,
                old_employee_id, new_employee_id, created_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	var oldEmployee, newEmployee any
	if a.OldEmployeeID != nil {
		oldEmployee = *a.OldEmployeeID
	}
	if a.NewEmployeeID != nil {
		newEmployee = *a.NewEmployeeID
	}
	res, err := tx.ExecContext(ctx, q,
		a.BookingID, a.OldSlotID, a.NewSlotID, a.OldPriceCents, a.NewPriceCents,
		oldEmployee, newEmployee, mysqlTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert reschedule audit: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reschedule audit id: %w", err)
	}
	a.ID = uint64(id)
	return nil
}
