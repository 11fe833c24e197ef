package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlotRecompute(t *testing.T) {
	s := Slot{OriginalCapacity: 10, BookedCount: 4}
	s.Recompute()
	assert.Equal(t, uint32(6), s.AvailableCapacity)
	assert.False(t, s.IsOverbooked)

	s.BookedCount = 12
	s.Recompute()
	assert.Equal(t, uint32(0), s.AvailableCapacity)
	assert.True(t, s.IsOverbooked)
}

func TestSlotCanReserve(t *testing.T) {
	s := Slot{OriginalCapacity: 10, BookedCount: 6, IsAvailable: true}
	s.Recompute()

	assert.True(t, s.CanReserve(4, 0))
	assert.False(t, s.CanReserve(5, 0))
	assert.True(t, s.CanReserve(2, 2))
	assert.False(t, s.CanReserve(3, 2))

	// Locked quantity above availability must not underflow.
	assert.False(t, s.CanReserve(1, 7))

	s.IsAvailable = false
	assert.False(t, s.CanReserve(1, 0))
}

func TestSlotReserveAndRelease(t *testing.T) {
	s := Slot{OriginalCapacity: 5, IsAvailable: true}
	s.Recompute()

	s.Reserve(3)
	assert.Equal(t, uint32(3), s.BookedCount)
	assert.Equal(t, uint32(2), s.AvailableCapacity)

	s.Release(2)
	assert.Equal(t, uint32(1), s.BookedCount)
	assert.Equal(t, uint32(4), s.AvailableCapacity)

	// Releasing more than booked clamps at zero.
	s.Release(10)
	assert.Equal(t, uint32(0), s.BookedCount)
	assert.Equal(t, uint32(5), s.AvailableCapacity)
	assert.False(t, s.IsOverbooked)
}
