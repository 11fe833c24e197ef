package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avetra/appointment-booking/internal/engine"
)

// HoldHandler exposes the reservation hold endpoints.  A hold shields
// seats for one checkout session for a short TTL; it is advisory and
// never mutates the capacity ledger, so releasing one (or letting it
// expire) needs no compensation.
type HoldHandler struct {
	Engine *engine.Engine
}

// NewHoldHandler constructs a HoldHandler.
func NewHoldHandler(e *engine.Engine) *HoldHandler {
	if e == nil {
		panic("nil engine passed to NewHoldHandler")
	}
	return &HoldHandler{Engine: e}
}

// Acquire handles POST /v1/slots/:id/holds.  The body names the
// checkout session and the number of seats to shield; 201 returns the
// hold id and its expiry so the client can show a countdown.
func (h *HoldHandler) Acquire(c echo.Context) error {
	tenant, err := tenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	slotID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var body struct {
		SessionID string `json:"session_id" validate:"required"`
		Quantity  uint32 `json:"quantity" validate:"required,min=1"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&body); err != nil {
		return err
	}

	lock, err := h.Engine.AcquireHold(c.Request().Context(), tenant, slotID, body.SessionID, body.Quantity)
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"hold_id":    lock.ID,
		"slot_id":    lock.SlotID,
		"quantity":   lock.Quantity,
		"expires_at": lock.ExpiresAt,
	})
}

// Release handles DELETE /v1/holds/:id.  Releasing a hold that already
// expired or was consumed returns 204 as well; the outcome is the same.
func (h *HoldHandler) Release(c echo.Context) error {
	tenant, err := tenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	holdID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err := h.Engine.ReleaseHold(c.Request().Context(), tenant, holdID); err != nil {
		return writeEngineError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
