package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avetra/appointment-booking/internal/engine"
	"github.com/avetra/appointment-booking/internal/model"
)

// PackageRepo provides data access to package_subscriptions and
// package_credit_balances.  Deduction is a guarded conditional UPDATE:
// the availability check and the decrement happen in one statement, so
// two bookings racing for the last credit cannot both win.
type PackageRepo struct {
	db *sql.DB
}

// NewPackageRepo returns a PackageRepo bound to the given database.
func NewPackageRepo(db *sql.DB) *PackageRepo { return &PackageRepo{db: db} }

// SubscriptionTx loads a subscription header.
func (r *PackageRepo) SubscriptionTx(ctx context.Context, tx *sql.Tx, subscriptionID uint64) (*model.PackageSubscription, error) {
	const q = `SELECT id, tenant_id, customer_id, active, created_at
               FROM package_subscriptions WHERE id = ?`
	var s model.PackageSubscription
	err := tx.QueryRowContext(ctx, q, subscriptionID).Scan(
		&s.ID, &s.TenantID, &s.CustomerID, &s.Active, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, engine.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return &s, nil
}

// DeductTx decrements remaining credit if and only if enough remains.
// Zero affected rows means the balance row is missing or short, both of
// which surface as insufficient credit.  Returns the remaining quantity
// after the deduction so the caller can detect exhaustion.
func (r *PackageRepo) DeductTx(ctx context.Context, tx *sql.Tx, subscriptionID, serviceID uint64, quantity uint32) (uint32, error) {
	const q = `UPDATE package_credit_balances
               SET remaining_quantity = remaining_quantity - ?, used_quantity = used_quantity + ?
               WHERE subscription_id = ? AND service_id = ? AND remaining_quantity >= ?`
	res, err := tx.ExecContext(ctx, q, quantity, quantity, subscriptionID, serviceID, quantity)
	if err != nil {
		return 0, fmt.Errorf("deduct credit: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deduct credit affected: %w", err)
	}
	if affected == 0 {
		return 0, fmt.Errorf("subscription %d service %d: %w", subscriptionID, serviceID, engine.ErrInsufficientCredit)
	}
	var remaining uint32
	err = tx.QueryRowContext(ctx,
		`SELECT remaining_quantity FROM package_credit_balances WHERE subscription_id = ? AND service_id = ?`,
		subscriptionID, serviceID).Scan(&remaining)
	if err != nil {
		return 0, fmt.Errorf("read remaining credit: %w", err)
	}
	return remaining, nil
}

// MarkExhaustedTx flips the one-time exhaustion marker.  The guard on
// exhausted_notified makes the flip first-writer-wins: only the
// transaction that actually transitions the flag reports fired=true,
// so the exhaustion notification goes out exactly once.
func (r *PackageRepo) MarkExhaustedTx(ctx context.Context, tx *sql.Tx, subscriptionID, serviceID uint64) (bool, error) {
	const q = `UPDATE package_credit_balances
               SET exhausted_notified = 1
               WHERE subscription_id = ? AND service_id = ? AND exhausted_notified = 0`
	res, err := tx.ExecContext(ctx, q, subscriptionID, serviceID)
	if err != nil {
		return false, fmt.Errorf("mark credit exhausted: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark exhausted affected: %w", err)
	}
	return affected > 0, nil
}

// RestoreTx returns credit after a cancellation.  The row is read under
// its lock and clamped in memory: restore never exceeds what was used
// and never pushes remaining past the original grant.
func (r *PackageRepo) RestoreTx(ctx context.Context, tx *sql.Tx, subscriptionID, serviceID uint64, quantity uint32) error {
	const sel = `SELECT subscription_id, service_id, original_quantity, remaining_quantity, used_quantity, exhausted_notified
                 FROM package_credit_balances
                 WHERE subscription_id = ? AND service_id = ? FOR UPDATE`
	var b model.PackageCreditBalance
	err := tx.QueryRowContext(ctx, sel, subscriptionID, serviceID).Scan(
		&b.SubscriptionID, &b.ServiceID, &b.OriginalQuantity, &b.RemainingQuantity, &b.UsedQuantity, &b.ExhaustedNotified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("subscription %d service %d: %w", subscriptionID, serviceID, engine.ErrInsufficientCredit)
		}
		return fmt.Errorf("get credit balance: %w", err)
	}
	b.Restore(quantity)
	const upd = `UPDATE package_credit_balances
                 SET remaining_quantity = ?, used_quantity = ?
                 WHERE subscription_id = ? AND service_id = ?`
	if _, err := tx.ExecContext(ctx, upd, b.RemainingQuantity, b.UsedQuantity, subscriptionID, serviceID); err != nil {
		return fmt.Errorf("restore credit: %w", err)
	}
	return nil
}

// RemainingByCustomer sums remaining credit for one service across a
// customer's active subscriptions and lists the subscriptions that
// still carry credit.
func (r *PackageRepo) RemainingByCustomer(ctx context.Context, tenantID, customerID, serviceID uint64) (uint32, []uint64, error) {
	const q = `SELECT s.id, b.remaining_quantity
               FROM package_subscriptions s
               JOIN package_credit_balances b ON b.subscription_id = s.id
               WHERE s.tenant_id = ? AND s.customer_id = ? AND s.active = 1
                 AND b.service_id = ? AND b.remaining_quantity > 0
               ORDER BY s.id`
	rows, err := r.db.QueryContext(ctx, q, tenantID, customerID, serviceID)
	if err != nil {
		return 0, nil, fmt.Errorf("query remaining credit: %w", err)
	}
	defer rows.Close()

	var total uint32
	var ids []uint64
	for rows.Next() {
		var id uint64
		var remaining uint32
		if err := rows.Scan(&id, &remaining); err != nil {
			return 0, nil, fmt.Errorf("scan remaining credit: %w", err)
		}
		total += remaining
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("iterate remaining credit: %w", err)
	}
	return total, ids, nil
}
