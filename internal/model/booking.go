package model

import "time"

// BookingStatus enumerates the lifecycle states of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingCompleted BookingStatus = "COMPLETED"
)

// Terminal reports whether the status admits no further transitions.
// Terminal bookings no longer count against slot capacity.
func (s BookingStatus) Terminal() bool {
	return s == BookingCancelled || s == BookingCompleted
}

// CanTransitionTo reports whether the state machine permits moving from
// s to next.  PENDING may become CONFIRMED, CANCELLED or COMPLETED;
// CONFIRMED may become CANCELLED or COMPLETED; the terminal states
// reject everything, including re-entering themselves.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	switch s {
	case BookingPending:
		return next == BookingConfirmed || next == BookingCancelled || next == BookingCompleted
	case BookingConfirmed:
		return next == BookingCancelled || next == BookingCompleted
	}
	return false
}

// Booking is the durable reservation against one slot.  Bookings are
// never physically deleted: cancellation is a status change whose
// ledger effects are reversed by the lifecycle manager.
//
// Fields:
//  ID              – primary key identifier.
//  TenantID        – owning tenant.
//  ServiceID       – service being booked (resynchronized on reschedule
//                    when the target slot belongs to a different service).
//  SlotID          – slot the booking currently occupies.
//  EmployeeID      – assigned employee (nullable, follows the slot).
//  CustomerID      – customer identity reference.
//  CustomerName    – customer display name.
//  CustomerEmail   – customer contact email.
//  VisitorCount    – positive number of seats consumed on the slot.
//  Status          – lifecycle status.
//  PaymentStatus   – payment state label, opaque to this core.
//  PriceCents      – total price for the paid portion, in cents.
//  BookingGroupID  – correlates sibling rows of one bulk purchase (nullable).
//  SubscriptionID  – package subscription paying for part of the booking
//                    (nullable).
//  PackageCovered  – seats paid with package credit.
//  PaidQuantity    – seats paid with cash; PackageCovered + PaidQuantity
//                    always equals VisitorCount.
//  TicketToken     – opaque entry token; regenerated on reschedule so a
//                    previously issued QR code stops validating.
type Booking struct {
	ID             uint64        // bookings.id
	TenantID       uint64        // bookings.tenant_id
	ServiceID      uint64        // bookings.service_id
	SlotID         uint64        // bookings.slot_id
	EmployeeID     *uint64       // bookings.employee_id (nullable)
	CustomerID     uint64        // bookings.customer_id
	CustomerName   string        // bookings.customer_name
	CustomerEmail  string        // bookings.customer_email
	VisitorCount   uint32        // bookings.visitor_count
	Status         BookingStatus // bookings.status
	PaymentStatus  string        // bookings.payment_status
	PriceCents     uint32        // bookings.price_cents
	BookingGroupID *string       // bookings.booking_group_id (nullable)
	SubscriptionID *uint64       // bookings.subscription_id (nullable)
	PackageCovered uint32        // bookings.package_covered_quantity
	PaidQuantity   uint32        // bookings.paid_quantity
	TicketToken    string        // bookings.ticket_token
	CreatedAt      time.Time     // bookings.created_at
	UpdatedAt      time.Time     // bookings.updated_at
}

// RescheduleAudit captures one reschedule of a booking: the slot, price
// and employee before and after the move.  Written in the same
// transaction as the move itself.
type RescheduleAudit struct {
	ID            uint64    // booking_reschedules.id
	BookingID     uint64    // booking_reschedules.booking_id
	OldSlotID     uint64    // booking_reschedules.old_slot_id
	NewSlotID     uint64    // booking_reschedules.new_slot_id
	OldPriceCents uint32    // booking_reschedules.old_price_cents
	NewPriceCents uint32    // booking_reschedules.new_price_cents
	OldEmployeeID *uint64   // booking_reschedules.old_employee_id (nullable)
	NewEmployeeID *uint64   // booking_reschedules.new_employee_id (nullable)
	CreatedAt     time.Time // booking_reschedules.created_at
}
