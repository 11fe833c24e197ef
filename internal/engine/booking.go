package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/avetra/appointment-booking/internal/model"
	"github.com/avetra/appointment-booking/internal/queue"
)

// newTicketToken generates the opaque entry token stored on each
// booking.  crypto/rand guarantees the token cannot be guessed from a
// previously issued one.
func newTicketToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// pendingEvent defers a publish until after the surrounding transaction
// committed; ledger mutations must never depend on the broker.
type pendingEvent func(ctx context.Context, p EventPublisher) error

func (e *Engine) publish(ctx context.Context, events []pendingEvent) {
	if e.events == nil {
		return
	}
	for _, ev := range events {
		if err := ev(ctx, e.events); err != nil {
			log.Printf("engine: event publish failed: %v", err)
		}
	}
}

// CreateBookingInput carries one single-slot booking request.
type CreateBookingInput struct {
	TenantID      uint64
	SlotID        uint64
	CustomerID    uint64
	CustomerName  string
	CustomerEmail string
	VisitorCount  uint32
	// HoldID/SessionID identify a previously acquired hold to consume;
	// both are optional but must be presented together.
	HoldID    uint64
	SessionID string
	// SubscriptionID/PackageCovered opt part or all of the visitors
	// into prepaid package credit.
	SubscriptionID uint64
	PackageCovered uint32
}

func (in *CreateBookingInput) validate() error {
	if in.VisitorCount == 0 {
		return fmt.Errorf("%w: visitor count must be positive", ErrInputInconsistency)
	}
	if in.PackageCovered > in.VisitorCount {
		return fmt.Errorf("%w: package covered quantity %d exceeds visitor count %d",
			ErrInputInconsistency, in.PackageCovered, in.VisitorCount)
	}
	if in.PackageCovered > 0 && in.SubscriptionID == 0 {
		return fmt.Errorf("%w: package coverage requires a subscription", ErrInputInconsistency)
	}
	if in.HoldID != 0 && in.SessionID == "" {
		return fmt.Errorf("%w: consuming a hold requires its session", ErrInputInconsistency)
	}
	return nil
}

// CreateBooking validates and persists one booking as a single atomic
// unit: hold validation, capacity re-verification against other
// sessions' outstanding holds, price computation, the booking insert,
// the capacity reservation, the optional package credit deduction and
// the consumed hold's deletion all commit or abort together.
func (e *Engine) CreateBooking(ctx context.Context, in CreateBookingInput) (*model.Booking, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := e.now()
	paid := in.VisitorCount - in.PackageCovered

	var booking *model.Booking
	var events []pendingEvent
	err := e.store.InTx(ctx, func(tx Tx) error {
		events = events[:0]
		slot, err := tx.SlotForUpdate(ctx, in.SlotID)
		if err != nil {
			return err
		}
		if slot.TenantID != in.TenantID {
			return ErrTenantMismatch
		}
		if in.HoldID != 0 {
			if _, err := e.validateHold(ctx, tx, in.SlotID, in.HoldID, in.SessionID, now); err != nil {
				return err
			}
		}
		lockedByOthers, err := tx.ActiveLockedQuantity(ctx, in.SlotID, in.HoldID, now)
		if err != nil {
			return err
		}
		if !slot.CanReserve(in.VisitorCount, lockedByOthers) {
			return fmt.Errorf("slot %d: %w", in.SlotID, ErrInsufficientCapacity)
		}
		svc, err := tx.ServiceByID(ctx, slot.ServiceID)
		if err != nil {
			return err
		}
		price := svc.ActivePriceCents() * paid

		var subscriptionID *uint64
		if in.PackageCovered > 0 {
			sub, exhausted, err := e.deductCoverage(ctx, tx, in.TenantID, in.CustomerID, in.SubscriptionID, slot.ServiceID, in.PackageCovered)
			if err != nil {
				return err
			}
			subscriptionID = &sub.ID
			if exhausted {
				events = append(events, exhaustedEvent(sub, slot.ServiceID, now))
			}
		}

		token, err := newTicketToken()
		if err != nil {
			return err
		}
		booking = &model.Booking{
			TenantID:       in.TenantID,
			ServiceID:      slot.ServiceID,
			SlotID:         slot.ID,
			EmployeeID:     slot.EmployeeID,
			CustomerID:     in.CustomerID,
			CustomerName:   in.CustomerName,
			CustomerEmail:  in.CustomerEmail,
			VisitorCount:   in.VisitorCount,
			Status:         model.BookingPending,
			PaymentStatus:  paymentStatusFor(paid),
			PriceCents:     price,
			SubscriptionID: subscriptionID,
			PackageCovered: in.PackageCovered,
			PaidQuantity:   paid,
			TicketToken:    token,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.InsertBooking(ctx, booking); err != nil {
			return err
		}
		slot.Reserve(in.VisitorCount)
		if err := tx.UpdateSlotCounters(ctx, slot); err != nil {
			return err
		}
		if in.HoldID != 0 {
			if err := tx.DeleteLock(ctx, in.HoldID); err != nil {
				return err
			}
		}
		events = append(events, createdEvent(booking))
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.publish(ctx, events)
	return booking, nil
}

// BulkBookingInput carries a multi-slot request placing one visitor per
// slot.  GroupID may be supplied by the caller for idempotent retries;
// when empty a fresh UUID is generated.
type BulkBookingInput struct {
	TenantID       uint64
	SlotIDs        []uint64
	CustomerID     uint64
	CustomerName   string
	CustomerEmail  string
	SubscriptionID uint64
	PackageCovered uint32
	GroupID        string
}

func (in *BulkBookingInput) validate() error {
	if len(in.SlotIDs) == 0 {
		return fmt.Errorf("%w: bulk booking requires at least one slot", ErrInputInconsistency)
	}
	seen := make(map[uint64]struct{}, len(in.SlotIDs))
	for _, id := range in.SlotIDs {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate slot %d in bulk request", ErrInputInconsistency, id)
		}
		seen[id] = struct{}{}
	}
	if in.PackageCovered > uint32(len(in.SlotIDs)) {
		return fmt.Errorf("%w: package covered quantity %d exceeds slot count %d",
			ErrInputInconsistency, in.PackageCovered, len(in.SlotIDs))
	}
	if in.PackageCovered > 0 && in.SubscriptionID == 0 {
		return fmt.Errorf("%w: package coverage requires a subscription", ErrInputInconsistency)
	}
	return nil
}

// CreateBulkBooking creates one booking per slot as an all-or-nothing
// unit.  Every slot is validated, in the given order, before any
// booking row is written, so a failure on a late slot leaves no partial
// bookings behind; the returned error names the offending slot so the
// caller can retry with a different mix.  Package coverage fills the
// first PackageCovered array positions; the rest are paid.
func (e *Engine) CreateBulkBooking(ctx context.Context, in BulkBookingInput) ([]*model.Booking, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := e.now()
	groupID := in.GroupID
	if groupID == "" {
		groupID = uuid.NewString()
	}

	var bookings []*model.Booking
	var events []pendingEvent
	err := e.store.InTx(ctx, func(tx Tx) error {
		bookings = bookings[:0]
		events = events[:0]

		// Validation pass: lock and check every slot before writing
		// anything.
		slots := make([]*model.Slot, 0, len(in.SlotIDs))
		services := make(map[uint64]*model.Service)
		for _, slotID := range in.SlotIDs {
			slot, err := tx.SlotForUpdate(ctx, slotID)
			if err != nil {
				return fmt.Errorf("slot %d: %w", slotID, err)
			}
			if slot.TenantID != in.TenantID {
				return fmt.Errorf("slot %d: %w", slotID, ErrTenantMismatch)
			}
			lockedByOthers, err := tx.ActiveLockedQuantity(ctx, slotID, 0, now)
			if err != nil {
				return err
			}
			if !slot.CanReserve(1, lockedByOthers) {
				return fmt.Errorf("slot %d: %w", slotID, ErrInsufficientCapacity)
			}
			if _, ok := services[slot.ServiceID]; !ok {
				svc, err := tx.ServiceByID(ctx, slot.ServiceID)
				if err != nil {
					return err
				}
				services[slot.ServiceID] = svc
			}
			slots = append(slots, slot)
		}

		// Credit pass: deduct the covered positions, grouped per
		// service, before any booking exists.
		var subscriptionID *uint64
		if in.PackageCovered > 0 {
			perService := make(map[uint64]uint32)
			order := make([]uint64, 0, len(slots))
			for i := uint32(0); i < in.PackageCovered; i++ {
				svcID := slots[i].ServiceID
				if _, ok := perService[svcID]; !ok {
					order = append(order, svcID)
				}
				perService[svcID]++
			}
			for _, svcID := range order {
				sub, exhausted, err := e.deductCoverage(ctx, tx, in.TenantID, in.CustomerID, in.SubscriptionID, svcID, perService[svcID])
				if err != nil {
					return err
				}
				subscriptionID = &sub.ID
				if exhausted {
					events = append(events, exhaustedEvent(sub, svcID, now))
				}
			}
		}

		// Write pass: insert the group and reserve each slot.
		for i, slot := range slots {
			covered := uint32(0)
			if uint32(i) < in.PackageCovered {
				covered = 1
			}
			price := uint32(0)
			if covered == 0 {
				price = services[slot.ServiceID].ActivePriceCents()
			}
			token, err := newTicketToken()
			if err != nil {
				return err
			}
			gid := groupID
			b := &model.Booking{
				TenantID:       in.TenantID,
				ServiceID:      slot.ServiceID,
				SlotID:         slot.ID,
				EmployeeID:     slot.EmployeeID,
				CustomerID:     in.CustomerID,
				CustomerName:   in.CustomerName,
				CustomerEmail:  in.CustomerEmail,
				VisitorCount:   1,
				Status:         model.BookingPending,
				PaymentStatus:  paymentStatusFor(1 - covered),
				PriceCents:     price,
				BookingGroupID: &gid,
				PackageCovered: covered,
				PaidQuantity:   1 - covered,
				TicketToken:    token,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if covered == 1 {
				b.SubscriptionID = subscriptionID
			}
			if err := tx.InsertBooking(ctx, b); err != nil {
				return err
			}
			slot.Reserve(1)
			if err := tx.UpdateSlotCounters(ctx, slot); err != nil {
				return err
			}
			bookings = append(bookings, b)
			events = append(events, createdEvent(b))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.publish(ctx, events)
	return bookings, nil
}

// deductCoverage resolves and checks the subscription, then performs
// the guarded deduction.  The insufficiency path is intentionally
// defensive: callers should have pre-checked remaining credit via
// ResolveRemainingPackageCapacity, so hitting the guard is reported,
// never silently absorbed.
func (e *Engine) deductCoverage(ctx context.Context, tx Tx, tenantID, customerID, subscriptionID, serviceID uint64, quantity uint32) (*model.PackageSubscription, bool, error) {
	sub, err := tx.SubscriptionByID(ctx, subscriptionID)
	if err != nil {
		return nil, false, err
	}
	if sub.TenantID != tenantID {
		return nil, false, ErrTenantMismatch
	}
	if sub.CustomerID != customerID {
		return nil, false, fmt.Errorf("%w: subscription %d belongs to a different customer", ErrInputInconsistency, subscriptionID)
	}
	if !sub.Active {
		return nil, false, fmt.Errorf("subscription %d is inactive: %w", subscriptionID, ErrInsufficientCredit)
	}
	remaining, err := tx.DeductCredit(ctx, subscriptionID, serviceID, quantity)
	if err != nil {
		return nil, false, err
	}
	exhausted := false
	if remaining == 0 {
		// One-time marker: only the deduction that reaches zero fires
		// the notification, later deductions find the marker set.
		fired, err := tx.MarkCreditExhausted(ctx, subscriptionID, serviceID)
		if err != nil {
			return nil, false, err
		}
		exhausted = fired
	}
	return sub, exhausted, nil
}

func paymentStatusFor(paidQuantity uint32) string {
	if paidQuantity == 0 {
		return "NOT_REQUIRED"
	}
	return "PENDING"
}

func createdEvent(b *model.Booking) pendingEvent {
	ev := queue.BookingCreatedEvent{
		BookingID:      b.ID,
		TenantID:       b.TenantID,
		ServiceID:      b.ServiceID,
		SlotID:         b.SlotID,
		CustomerID:     b.CustomerID,
		VisitorCount:   b.VisitorCount,
		PriceCents:     b.PriceCents,
		PackageCovered: b.PackageCovered,
		BookingGroupID: b.BookingGroupID,
		CreatedAt:      b.CreatedAt.Format(time.RFC3339),
	}
	bk := b
	return func(ctx context.Context, p EventPublisher) error {
		ev.BookingID = bk.ID // insert populates the id after event capture
		return p.PublishBookingCreated(ctx, ev)
	}
}

func exhaustedEvent(sub *model.PackageSubscription, serviceID uint64, now time.Time) pendingEvent {
	ev := queue.PackageExhaustedEvent{
		TenantID:       sub.TenantID,
		SubscriptionID: sub.ID,
		ServiceID:      serviceID,
		CustomerID:     sub.CustomerID,
		ExhaustedAt:    now.Format(time.RFC3339),
	}
	return func(ctx context.Context, p EventPublisher) error {
		return p.PublishPackageExhausted(ctx, ev)
	}
}
