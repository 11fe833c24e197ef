package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avetra/appointment-booking/internal/engine"
	"github.com/avetra/appointment-booking/internal/model"
)

// BookingRepo provides data access to the bookings table.  Bookings are
// never deleted; cancellation flows through UpdateStatusTx and leaves
// the row in place for history and invoicing.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// InsertTx creates a booking row and populates the generated id.
func (r *BookingRepo) InsertTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings
               (tenant_id, service_id, slot_id, employee_id, customer_id, customer_name, customer_email,
                visitor_count, status, payment_status, price_cents, booking_group_id,
                subscription_id, package_covered_quantity, paid_quantity, ticket_token, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var employeeID, subscriptionID any
	if b.EmployeeID != nil {
		employeeID = *b.EmployeeID
	}
	if b.SubscriptionID != nil {
		subscriptionID = *b.SubscriptionID
	}
	var groupID any
	if b.BookingGroupID != nil {
		groupID = *b.BookingGroupID
	}
	res, err := tx.ExecContext(ctx, q,
		b.TenantID, b.ServiceID, b.SlotID, employeeID, b.CustomerID, b.CustomerName, b.CustomerEmail,
		b.VisitorCount, string(b.Status), b.PaymentStatus, b.PriceCents, groupID,
		subscriptionID, b.PackageCovered, b.PaidQuantity, b.TicketToken,
		mysqlTime(b.CreatedAt), mysqlTime(b.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("booking id: %w", err)
	}
	b.ID = uint64(id)
	return nil
}

// GetForUpdateTx loads a booking under its row lock so concurrent
// status changes and reschedules of the same booking serialize.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (*model.Booking, error) {
	const q = `SELECT id, tenant_id, service_id, slot_id, employee_id, customer_id, customer_name, customer_email,
                      visitor_count, status, payment_status, price_cents, booking_group_id,
                      subscription_id, package_covered_quantity, paid_quantity, ticket_token, created_at, updated_at
               FROM bookings WHERE id = ? FOR UPDATE`
	var b model.Booking
	var status string
	var employeeID, subscriptionID sql.NullInt64
	var groupID sql.NullString
	err := tx.QueryRowContext(ctx, q, bookingID).Scan(
		&b.ID, &b.TenantID, &b.ServiceID, &b.SlotID, &employeeID, &b.CustomerID, &b.CustomerName, &b.CustomerEmail,
		&b.VisitorCount, &status, &b.PaymentStatus, &b.PriceCents, &groupID,
		&subscriptionID, &b.PackageCovered, &b.PaidQuantity, &b.TicketToken, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, engine.ErrBookingNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	b.Status = model.BookingStatus(status)
	if employeeID.Valid {
		eid := uint64(employeeID.Int64)
		b.EmployeeID = &eid
	}
	if subscriptionID.Valid {
		sid := uint64(subscriptionID.Int64)
		b.SubscriptionID = &sid
	}
	if groupID.Valid {
		gid := groupID.String
		b.BookingGroupID = &gid
	}
	return &b, nil
}

// UpdateStatusTx persists a lifecycle transition.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, bookingID uint64, status model.BookingStatus) error {
	const q = `UPDATE bookings SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`
	if _, err := tx.ExecContext(ctx, q, string(status), bookingID); err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	return nil
}

// UpdateSlotTx persists a reschedule: the new slot, the resynchronized
// service and employee, the recomputed price and the regenerated ticket
// token.
func (r *BookingRepo) UpdateSlotTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `UPDATE bookings
               SET slot_id = ?, service_id = ?, employee_id = ?, price_cents = ?, ticket_token = ?, updated_at = ?
               WHERE id = ?`
	var employeeID any
	if b.EmployeeID != nil {
		employeeID = *b.EmployeeID
	}
	if _, err := tx.ExecContext(ctx, q,
		b.SlotID, b.ServiceID, employeeID, b.PriceCents, b.TicketToken, mysqlTime(b.UpdatedAt), b.ID); err != nil {
		return fmt.Errorf("update booking slot: %w", err)
	}
	return nil
}
