package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avetra/appointment-booking/internal/engine"
)

func TestWriteEngineErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{engine.ErrSlotNotFound, http.StatusNotFound},
		{engine.ErrBookingNotFound, http.StatusNotFound},
		{engine.ErrSubscriptionNotFound, http.StatusNotFound},
		{engine.ErrTenantMismatch, http.StatusForbidden},
		{engine.ErrInputInconsistency, http.StatusBadRequest},
		{engine.ErrLockExpired, http.StatusGone},
		{engine.ErrInsufficientCapacity, http.StatusConflict},
		{engine.ErrInsufficientCredit, http.StatusConflict},
		{engine.ErrLockSessionMismatch, http.StatusConflict},
		{engine.ErrInvalidTransition, http.StatusConflict},
		{fmt.Errorf("driver: bad connection"), http.StatusInternalServerError},
	}
	e := echo.New()
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		require.NoError(t, writeEngineError(c, tc.err))
		assert.Equal(t, tc.code, rec.Code, "error %v", tc.err)
	}
}

func TestWriteEngineErrorUnwrapsWrappedErrors(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	wrapped := fmt.Errorf("slot 7: %w", engine.ErrInsufficientCapacity)
	require.NoError(t, writeEngineError(c, wrapped))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "slot 7")
}

func TestValidatorRejectsBadInput(t *testing.T) {
	v := NewValidator()

	type body struct {
		Email    string `validate:"required,email"`
		Quantity uint32 `validate:"required,min=1"`
	}

	err := v.Validate(&body{Email: "dana@example.com", Quantity: 1})
	assert.NoError(t, err)

	err = v.Validate(&body{Email: "not-an-email", Quantity: 1})
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)

	err = v.Validate(&body{Email: "dana@example.com"})
	assert.Error(t, err)
}

func TestTenantIDRequiresClaim(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	_, err := tenantID(c)
	assert.Error(t, err)

	c.Set("tenant_id", uint64(10))
	id, err := tenantID(c)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), id)
}
