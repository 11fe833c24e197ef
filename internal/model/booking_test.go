package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBookingStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to BookingStatus
		ok       bool
	}{
		{BookingPending, BookingConfirmed, true},
		{BookingPending, BookingCancelled, true},
		{BookingPending, BookingCompleted, true},
		{BookingConfirmed, BookingCancelled, true},
		{BookingConfirmed, BookingCompleted, true},
		{BookingConfirmed, BookingPending, false},
		{BookingPending, BookingPending, false},
		{BookingCancelled, BookingConfirmed, false},
		{BookingCancelled, BookingCancelled, false},
		{BookingCompleted, BookingCancelled, false},
		{BookingCompleted, BookingCompleted, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestBookingStatusTerminal(t *testing.T) {
	assert.False(t, BookingPending.Terminal())
	assert.False(t, BookingConfirmed.Terminal())
	assert.True(t, BookingCancelled.Terminal())
	assert.True(t, BookingCompleted.Terminal())
}
