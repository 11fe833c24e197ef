package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/avetra/appointment-booking/internal/model"
	"github.com/avetra/appointment-booking/internal/queue"
)

// ChangeStatus applies a lifecycle transition and reconciles the
// ledgers in the same atomic unit.  Confirmation is a label change
// only: capacity was already reserved at creation time.  The terminal
// transitions release the slot's capacity; cancellation additionally
// restores any package credit the booking consumed (a completed visit
// stays consumed).
func (e *Engine) ChangeStatus(ctx context.Context, tenantID, bookingID uint64, next model.BookingStatus) (*model.Booking, error) {
	switch next {
	case model.BookingConfirmed, model.BookingCancelled, model.BookingCompleted:
	default:
		return nil, fmt.Errorf("%w: unknown target status %q", ErrInvalidTransition, next)
	}
	now := e.now()

	var booking *model.Booking
	var events []pendingEvent
	err := e.store.InTx(ctx, func(tx Tx) error {
		events = events[:0]
		b, err := tx.BookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.TenantID != tenantID {
			return ErrTenantMismatch
		}
		if !b.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, next)
		}
		if next.Terminal() {
			slot, err := tx.SlotForUpdate(ctx, b.SlotID)
			if err != nil {
				return err
			}
			slot.Release(b.VisitorCount)
			if err := tx.UpdateSlotCounters(ctx, slot); err != nil {
				return err
			}
			if next == model.BookingCancelled && b.PackageCovered > 0 && b.SubscriptionID != nil {
				if err := tx.RestoreCredit(ctx, *b.SubscriptionID, b.ServiceID, b.PackageCovered); err != nil {
					return err
				}
			}
		}
		if err := tx.UpdateBookingStatus(ctx, bookingID, next); err != nil {
			return err
		}
		b.Status = next
		b.UpdatedAt = now
		booking = b
		if next == model.BookingCancelled {
			events = append(events, cancelledEvent(b, now))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.publish(ctx, events)
	return booking, nil
}

// Reschedule moves a booking to a different slot without changing its
// status.  In one atomic unit it re-validates the new slot's capacity
// against outstanding holds, releases the old slot, reserves the new
// one, recomputes the price from the new slot's service, re-assigns the
// employee to match the new slot, regenerates the entry ticket token so
// previously issued QR codes stop validating, and writes an audit
// record.  When the new slot belongs to a different service the
// booking's service reference is silently resynchronized to it.
// The returned flag reports whether the price changed.
func (e *Engine) Reschedule(ctx context.Context, tenantID, bookingID, newSlotID uint64) (*model.Booking, bool, error) {
	now := e.now()

	var booking *model.Booking
	var priceChanged bool
	var events []pendingEvent
	err := e.store.InTx(ctx, func(tx Tx) error {
		events = events[:0]
		b, err := tx.BookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.TenantID != tenantID {
			return ErrTenantMismatch
		}
		if b.Status.Terminal() {
			return fmt.Errorf("%w: cannot reschedule a %s booking", ErrInvalidTransition, b.Status)
		}
		if b.SlotID == newSlotID {
			return fmt.Errorf("%w: booking already occupies slot %d", ErrInputInconsistency, newSlotID)
		}

		oldSlot, newSlot, err := lockSlotPair(ctx, tx, b.SlotID, newSlotID)
		if err != nil {
			return err
		}
		if newSlot.TenantID != tenantID {
			return ErrTenantMismatch
		}
		lockedByOthers, err := tx.ActiveLockedQuantity(ctx, newSlotID, 0, now)
		if err != nil {
			return err
		}
		if !newSlot.CanReserve(b.VisitorCount, lockedByOthers) {
			return fmt.Errorf("slot %d: %w", newSlotID, ErrInsufficientCapacity)
		}

		oldSlot.Release(b.VisitorCount)
		if err := tx.UpdateSlotCounters(ctx, oldSlot); err != nil {
			return err
		}
		newSlot.Reserve(b.VisitorCount)
		if err := tx.UpdateSlotCounters(ctx, newSlot); err != nil {
			return err
		}

		svc, err := tx.ServiceByID(ctx, newSlot.ServiceID)
		if err != nil {
			return err
		}
		newPrice := svc.ActivePriceCents() * b.PaidQuantity
		priceChanged = newPrice != b.PriceCents

		audit := &model.RescheduleAudit{
			BookingID:     b.ID,
			OldSlotID:     b.SlotID,
			NewSlotID:     newSlot.ID,
			OldPriceCents: b.PriceCents,
			NewPriceCents: newPrice,
			OldEmployeeID: b.EmployeeID,
			NewEmployeeID: newSlot.EmployeeID,
			CreatedAt:     now,
		}
		oldSlotID := b.SlotID
		oldPrice := b.PriceCents

		token, err := newTicketToken()
		if err != nil {
			return err
		}
		b.SlotID = newSlot.ID
		b.ServiceID = newSlot.ServiceID
		b.EmployeeID = newSlot.EmployeeID
		b.PriceCents = newPrice
		b.TicketToken = token
		b.UpdatedAt = now
		if err := tx.UpdateBookingSlot(ctx, b); err != nil {
			return err
		}
		if err := tx.InsertRescheduleAudit(ctx, audit); err != nil {
			return err
		}
		booking = b
		events = append(events, rescheduledEvent(b, oldSlotID, oldPrice, priceChanged, now))
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	e.publish(ctx, events)
	return booking, priceChanged, nil
}

// lockSlotPair locks two slot rows in ascending id order so concurrent
// reschedules between the same pair cannot deadlock, then returns them
// as (old, new).
func lockSlotPair(ctx context.Context, tx Tx, oldID, newID uint64) (*model.Slot, *model.Slot, error) {
	firstID, secondID := oldID, newID
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}
	first, err := tx.SlotForUpdate(ctx, firstID)
	if err != nil {
		return nil, nil, fmt.Errorf("slot %d: %w", firstID, err)
	}
	second, err := tx.SlotForUpdate(ctx, secondID)
	if err != nil {
		return nil, nil, fmt.Errorf("slot %d: %w", secondID, err)
	}
	if first.ID == oldID {
		return first, second, nil
	}
	return second, first, nil
}

func cancelledEvent(b *model.Booking, now time.Time) pendingEvent {
	restored := uint32(0)
	if b.SubscriptionID != nil {
		restored = b.PackageCovered
	}
	ev := queue.BookingCancelledEvent{
		BookingID:      b.ID,
		TenantID:       b.TenantID,
		SlotID:         b.SlotID,
		VisitorCount:   b.VisitorCount,
		CreditRestored: restored,
		CancelledAt:    now.Format(time.RFC3339),
	}
	return func(ctx context.Context, p EventPublisher) error {
		return p.PublishBookingCancelled(ctx, ev)
	}
}

func rescheduledEvent(b *model.Booking, oldSlotID uint64, oldPrice uint32, priceChanged bool, now time.Time) pendingEvent {
	ev := queue.BookingRescheduledEvent{
		BookingID:     b.ID,
		TenantID:      b.TenantID,
		OldSlotID:     oldSlotID,
		NewSlotID:     b.SlotID,
		OldPriceCents: oldPrice,
		NewPriceCents: b.PriceCents,
		PriceChanged:  priceChanged,
		RescheduledAt: now.Format(time.RFC3339),
	}
	return func(ctx context.Context, p EventPublisher) error {
		return p.PublishBookingRescheduled(ctx, ev)
	}
}
