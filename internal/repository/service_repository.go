package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avetra/appointment-booking/internal/model"
)

// ServiceRepo provides read access to the services table.
type ServiceRepo struct {
	db *sql.DB
}

// NewServiceRepo returns a ServiceRepo bound to the given database.
func NewServiceRepo(db *sql.DB) *ServiceRepo { return &ServiceRepo{db: db} }

// GetTx loads a service inside a transaction.  A slot always references
// an existing service, so a missing row here is data corruption, not a
// caller mistake.
func (r *ServiceRepo) GetTx(ctx context.Context, tx *sql.Tx, serviceID uint64) (*model.Service, error) {
	const q = `SELECT id, tenant_id, name, price_cents, discount_price_cents, employee_scheduled
               FROM services WHERE id = ?`
	var s model.Service
	var discount sql.NullInt64
	err := tx.QueryRowContext(ctx, q, serviceID).Scan(
		&s.ID, &s.TenantID, &s.Name, &s.PriceCents, &discount, &s.EmployeeScheduled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("service %d not found", serviceID)
		}
		return nil, fmt.Errorf("get service: %w", err)
	}
	if discount.Valid {
		d := uint32(discount.Int64)
		s.DiscountPriceCents = &d
	}
	return &s, nil
}
