package engine_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avetra/appointment-booking/internal/engine"
	"github.com/avetra/appointment-booking/internal/model"
	"github.com/avetra/appointment-booking/internal/queue"
)

type balanceKey struct {
	subscriptionID uint64
	serviceID      uint64
}

// fakeStore is an in-memory engine.Store.  A mutex serializes atomic
// units the way row locks serialize transactions in MySQL, and a
// snapshot taken at the start of each unit is restored on error so
// rollback semantics hold.
type fakeStore struct {
	mu sync.Mutex

	slots    map[uint64]*model.Slot
	locks    map[uint64]*model.ReservationLock
	bookings map[uint64]*model.Booking
	services map[uint64]*model.Service
	subs     map[uint64]*model.PackageSubscription
	balances map[balanceKey]*model.PackageCreditBalance
	audits   []*model.RescheduleAudit

	nextLockID    uint64
	nextBookingID uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		slots:    make(map[uint64]*model.Slot),
		locks:    make(map[uint64]*model.ReservationLock),
		bookings: make(map[uint64]*model.Booking),
		services: make(map[uint64]*model.Service),
		subs:     make(map[uint64]*model.PackageSubscription),
		balances: make(map[balanceKey]*model.PackageCreditBalance),
	}
}

func (s *fakeStore) addSlot(slot model.Slot) {
	slot.Recompute()
	s.slots[slot.ID] = &slot
}

func (s *fakeStore) addService(svc model.Service) {
	s.services[svc.ID] = &svc
}

func (s *fakeStore) addSubscription(sub model.PackageSubscription, balances ...model.PackageCreditBalance) {
	s.subs[sub.ID] = &sub
	for _, b := range balances {
		b.SubscriptionID = sub.ID
		bal := b
		s.balances[balanceKey{sub.ID, b.ServiceID}] = &bal
	}
}

func (s *fakeStore) snapshot() *fakeStore {
	c := newFakeStore()
	for id, v := range s.slots {
		cp := *v
		c.slots[id] = &cp
	}
	for id, v := range s.locks {
		cp := *v
		c.locks[id] = &cp
	}
	for id, v := range s.bookings {
		cp := *v
		c.bookings[id] = &cp
	}
	for id, v := range s.services {
		cp := *v
		c.services[id] = &cp
	}
	for id, v := range s.subs {
		cp := *v
		c.subs[id] = &cp
	}
	for k, v := range s.balances {
		cp := *v
		c.balances[k] = &cp
	}
	c.audits = append([]*model.RescheduleAudit(nil), s.audits...)
	c.nextLockID = s.nextLockID
	c.nextBookingID = s.nextBookingID
	return c
}

func (s *fakeStore) restore(snap *fakeStore) {
	s.slots = snap.slots
	s.locks = snap.locks
	s.bookings = snap.bookings
	s.services = snap.services
	s.subs = snap.subs
	s.balances = snap.balances
	s.audits = snap.audits
	s.nextLockID = snap.nextLockID
	s.nextBookingID = snap.nextBookingID
}

func (s *fakeStore) InTx(ctx context.Context, fn func(tx engine.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	if err := fn(&fakeTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *fakeStore) SlotSnapshot(ctx context.Context, slotID uint64, now time.Time) (*model.Slot, uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[slotID]
	if !ok {
		return nil, 0, engine.ErrSlotNotFound
	}
	cp := *slot
	return &cp, s.lockedQuantity(slotID, 0, now), nil
}

func (s *fakeStore) RemainingPackageCredit(ctx context.Context, tenantID, customerID, serviceID uint64) (uint32, []uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total uint32
	var ids []uint64
	for _, sub := range s.subs {
		if sub.TenantID != tenantID || sub.CustomerID != customerID || !sub.Active {
			continue
		}
		bal, ok := s.balances[balanceKey{sub.ID, serviceID}]
		if !ok || bal.RemainingQuantity == 0 {
			continue
		}
		total += bal.RemainingQuantity
		ids = append(ids, sub.ID)
	}
	return total, ids, nil
}

func (s *fakeStore) lockedQuantity(slotID, excludeLockID uint64, now time.Time) uint32 {
	var sum uint32
	for _, l := range s.locks {
		if l.SlotID != slotID || l.ID == excludeLockID || l.Expired(now) {
			continue
		}
		sum += l.Quantity
	}
	return sum
}

type fakeTx struct {
	s *fakeStore
}

func (t *fakeTx) SlotForUpdate(ctx context.Context, slotID uint64) (*model.Slot, error) {
	slot, ok := t.s.slots[slotID]
	if !ok {
		return nil, engine.ErrSlotNotFound
	}
	cp := *slot
	return &cp, nil
}

func (t *fakeTx) UpdateSlotCounters(ctx context.Context, slot *model.Slot) error {
	stored, ok := t.s.slots[slot.ID]
	if !ok {
		return engine.ErrSlotNotFound
	}
	stored.BookedCount = slot.BookedCount
	stored.AvailableCapacity = slot.AvailableCapacity
	stored.IsOverbooked = slot.IsOverbooked
	return nil
}

func (t *fakeTx) InsertLock(ctx context.Context, lock *model.ReservationLock) error {
	t.s.nextLockID++
	lock.ID = t.s.nextLockID
	cp := *lock
	t.s.locks[lock.ID] = &cp
	return nil
}

func (t *fakeTx) LockByID(ctx context.Context, lockID uint64) (*model.ReservationLock, error) {
	lock, ok := t.s.locks[lockID]
	if !ok {
		return nil, engine.ErrLockNotFound
	}
	cp := *lock
	return &cp, nil
}

func (t *fakeTx) DeleteLock(ctx context.Context, lockID uint64) error {
	delete(t.s.locks, lockID)
	return nil
}

func (t *fakeTx) ActiveLockedQuantity(ctx context.Context, slotID, excludeLockID uint64, now time.Time) (uint32, error) {
	return t.s.lockedQuantity(slotID, excludeLockID, now), nil
}

func (t *fakeTx) DeleteExpiredLocks(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for id, l := range t.s.locks {
		if l.Expired(now) {
			delete(t.s.locks, id)
			n++
		}
	}
	return n, nil
}

func (t *fakeTx) ServiceByID(ctx context.Context, serviceID uint64) (*model.Service, error) {
	svc, ok := t.s.services[serviceID]
	if !ok {
		return nil, fmt.Errorf("service %d not found", serviceID)
	}
	cp := *svc
	return &cp, nil
}

func (t *fakeTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	t.s.nextBookingID++
	b.ID = t.s.nextBookingID
	cp := *b
	t.s.bookings[b.ID] = &cp
	return nil
}

func (t *fakeTx) BookingForUpdate(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	b, ok := t.s.bookings[bookingID]
	if !ok {
		return nil, engine.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (t *fakeTx) UpdateBookingStatus(ctx context.Context, bookingID uint64, status model.BookingStatus) error {
	b, ok := t.s.bookings[bookingID]
	if !ok {
		return engine.ErrBookingNotFound
	}
	b.Status = status
	return nil
}

func (t *fakeTx) UpdateBookingSlot(ctx context.Context, b *model.Booking) error {
	stored, ok := t.s.bookings[b.ID]
	if !ok {
		return engine.ErrBookingNotFound
	}
	stored.SlotID = b.SlotID
	stored.ServiceID = b.ServiceID
	stored.EmployeeID = b.EmployeeID
	stored.PriceCents = b.PriceCents
	stored.TicketToken = b.TicketToken
	stored.UpdatedAt = b.UpdatedAt
	return nil
}

func (t *fakeTx) InsertRescheduleAudit(ctx context.Context, a *model.RescheduleAudit) error {
	a.ID = uint64(len(t.s.audits) + 1)
	cp := *a
	t.s.audits = append(t.s.audits, &cp)
	return nil
}

func (t *fakeTx) SubscriptionByID(ctx context.Context, subscriptionID uint64) (*model.PackageSubscription, error) {
	sub, ok := t.s.subs[subscriptionID]
	if !ok {
		return nil, engine.ErrSubscriptionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (t *fakeTx) DeductCredit(ctx context.Context, subscriptionID, serviceID uint64, quantity uint32) (uint32, error) {
	bal, ok := t.s.balances[balanceKey{subscriptionID, serviceID}]
	if !ok || !bal.Deduct(quantity) {
		return 0, fmt.Errorf("subscription %d service %d: %w", subscriptionID, serviceID, engine.ErrInsufficientCredit)
	}
	return bal.RemainingQuantity, nil
}

func (t *fakeTx) MarkCreditExhausted(ctx context.Context, subscriptionID, serviceID uint64) (bool, error) {
	bal, ok := t.s.balances[balanceKey{subscriptionID, serviceID}]
	if !ok {
		return false, fmt.Errorf("subscription %d service %d: %w", subscriptionID, serviceID, engine.ErrInsufficientCredit)
	}
	if bal.ExhaustedNotified {
		return false, nil
	}
	bal.ExhaustedNotified = true
	return true, nil
}

func (t *fakeTx) RestoreCredit(ctx context.Context, subscriptionID, serviceID uint64, quantity uint32) error {
	bal, ok := t.s.balances[balanceKey{subscriptionID, serviceID}]
	if !ok {
		return fmt.Errorf("subscription %d service %d: %w", subscriptionID, serviceID, engine.ErrInsufficientCredit)
	}
	bal.Restore(quantity)
	return nil
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu          sync.Mutex
	created     []queue.BookingCreatedEvent
	cancelled   []queue.BookingCancelledEvent
	rescheduled []queue.BookingRescheduledEvent
	exhausted   []queue.PackageExhaustedEvent
}

func (p *recordingPublisher) PublishBookingCreated(ctx context.Context, ev queue.BookingCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, ev)
	return nil
}

func (p *recordingPublisher) PublishBookingCancelled(ctx context.Context, ev queue.BookingCancelledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, ev)
	return nil
}

func (p *recordingPublisher) PublishBookingRescheduled(ctx context.Context, ev queue.BookingRescheduledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rescheduled = append(p.rescheduled, ev)
	return nil
}

func (p *recordingPublisher) PublishPackageExhausted(ctx context.Context, ev queue.PackageExhaustedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exhausted = append(p.exhausted, ev)
	return nil
}
