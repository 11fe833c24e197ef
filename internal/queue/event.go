// Package queue defines message payloads exchanged over the message broker.
package queue

import "encoding/json"

// Event type names carried in every envelope published to the
// booking.events queue.
const (
	TypeBookingCreated     = "booking.created"
	TypeBookingCancelled   = "booking.cancelled"
	TypeBookingRescheduled = "booking.rescheduled"
	TypePackageExhausted   = "package.exhausted"
)

// Envelope wraps every event on the booking.events queue so consumers
// can dispatch on Type before decoding the payload.
type Envelope struct {
	Type       string          `json:"type"`
	OccurredAt string          `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// BookingCreatedEvent is published after a booking transaction commits.
// It carries enough for downstream consumers to notify or log without
// querying the primary database.
type BookingCreatedEvent struct {
	BookingID      uint64  `json:"booking_id"`
	TenantID       uint64  `json:"tenant_id"`
	ServiceID      uint64  `json:"service_id"`
	SlotID         uint64  `json:"slot_id"`
	CustomerID     uint64  `json:"customer_id"`
	VisitorCount   uint32  `json:"visitor_count"`
	PriceCents     uint32  `json:"price_cents"`
	PackageCovered uint32  `json:"package_covered_quantity"`
	BookingGroupID *string `json:"booking_group_id,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

// BookingCancelledEvent is published when a booking reaches the
// CANCELLED state and its ledger effects have been reversed.
type BookingCancelledEvent struct {
	BookingID      uint64 `json:"booking_id"`
	TenantID       uint64 `json:"tenant_id"`
	SlotID         uint64 `json:"slot_id"`
	VisitorCount   uint32 `json:"visitor_count"`
	CreditRestored uint32 `json:"credit_restored"`
	CancelledAt    string `json:"cancelled_at"`
}

// BookingRescheduledEvent is published when a booking moves to a new
// slot.  PriceChanged flags that the caller should re-confirm pricing
// with the customer.
type BookingRescheduledEvent struct {
	BookingID     uint64 `json:"booking_id"`
	TenantID      uint64 `json:"tenant_id"`
	OldSlotID     uint64 `json:"old_slot_id"`
	NewSlotID     uint64 `json:"new_slot_id"`
	OldPriceCents uint32 `json:"old_price_cents"`
	NewPriceCents uint32 `json:"new_price_cents"`
	PriceChanged  bool   `json:"price_changed"`
	RescheduledAt string `json:"rescheduled_at"`
}

// PackageExhaustedEvent fires exactly once per balance, when a
// deduction brings the remaining quantity to zero, so the provider can
// be warned once rather than on every subsequent paid booking.
type PackageExhaustedEvent struct {
	TenantID       uint64 `json:"tenant_id"`
	SubscriptionID uint64 `json:"subscription_id"`
	ServiceID      uint64 `json:"service_id"`
	CustomerID     uint64 `json:"customer_id"`
	ExhaustedAt    string `json:"exhausted_at"`
}
