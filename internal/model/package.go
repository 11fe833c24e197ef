package model

import "time"

// PackageSubscription grants a customer a prepaid allotment of visits.
// Per covered service the allotment is tracked by a PackageCreditBalance.
//
// Fields:
//  ID         – primary key identifier.
//  TenantID   – owning tenant.
//  CustomerID – customer who purchased the package.
//  Active     – whether the subscription may still be consumed.
type PackageSubscription struct {
	ID         uint64    // package_subscriptions.id
	TenantID   uint64    // package_subscriptions.tenant_id
	CustomerID uint64    // package_subscriptions.customer_id
	Active     bool      // package_subscriptions.active
	CreatedAt  time.Time // package_subscriptions.created_at
}

// PackageCreditBalance tracks prepaid visits of one subscription for one
// service.  The invariant Original == Remaining + Used holds at every
// observable point; Remaining never goes negative because deduction is a
// guarded conditional update, and Used never underflows because
// restoration is clamped.
//
// Fields:
//  SubscriptionID    – owning subscription.
//  ServiceID         – covered service.
//  OriginalQuantity  – visits granted at purchase time.
//  RemainingQuantity – visits still available.
//  UsedQuantity      – visits consumed by bookings.
//  ExhaustedNotified – one-time marker set when Remaining first hits zero,
//                      so the surrounding system warns the provider once.
type PackageCreditBalance struct {
	SubscriptionID    uint64 // package_credit_balances.subscription_id
	ServiceID         uint64 // package_credit_balances.service_id
	OriginalQuantity  uint32 // package_credit_balances.original_quantity
	RemainingQuantity uint32 // package_credit_balances.remaining_quantity
	UsedQuantity      uint32 // package_credit_balances.used_quantity
	ExhaustedNotified bool   // package_credit_balances.exhausted_notified
}

// Deduct consumes quantity credits when enough remain.  The check and
// the decrement are one step, mirroring the guarded UPDATE the SQL store
// issues.  It returns false, leaving the balance untouched, when the
// remaining credit is insufficient.
func (b *PackageCreditBalance) Deduct(quantity uint32) bool {
	if b.RemainingQuantity < quantity {
		return false
	}
	b.RemainingQuantity -= quantity
	b.UsedQuantity += quantity
	return true
}

// Restore returns quantity credits on cancellation.  Remaining is capped
// at Original and Used floors at zero so the balance invariant survives
// even a double restoration bug upstream.
func (b *PackageCreditBalance) Restore(quantity uint32) {
	if quantity > b.UsedQuantity {
		quantity = b.UsedQuantity
	}
	b.UsedQuantity -= quantity
	b.RemainingQuantity += quantity
	if b.RemainingQuantity > b.OriginalQuantity {
		b.RemainingQuantity = b.OriginalQuantity
	}
}
