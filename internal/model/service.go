package model

// Service describes the bookable offering a slot belongs to.  Catalog
// editing is out of scope; this core only reads the pricing fields when
// computing the paid portion of a booking.
//
// Fields:
//  ID                  – primary key identifier.
//  TenantID            – owning tenant.
//  Name                – display name.
//  PriceCents          – regular price per visitor, in cents.
//  DiscountPriceCents  – discounted price per visitor (nullable); when
//                        present it replaces PriceCents.
//  EmployeeScheduled   – whether slots of this service are tied to a
//                        specific employee.
type Service struct {
	ID                 uint64  // services.id
	TenantID           uint64  // services.tenant_id
	Name               string  // services.name
	PriceCents         uint32  // services.price_cents
	DiscountPriceCents *uint32 // services.discount_price_cents (nullable)
	EmployeeScheduled  bool    // services.employee_scheduled
}

// ActivePriceCents returns the price currently charged per paid visitor.
func (s *Service) ActivePriceCents() uint32 {
	if s.DiscountPriceCents != nil {
		return *s.DiscountPriceCents
	}
	return s.PriceCents
}
