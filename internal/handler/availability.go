package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/avetra/appointment-booking/internal/engine"
)

// AvailabilityHandler exposes the read-only capacity and package credit
// snapshots.  Both endpoints are safe to cache briefly; mutations
// re-validate under row locks regardless of what a snapshot claimed.
type AvailabilityHandler struct {
	Engine *engine.Engine
}

// NewAvailabilityHandler constructs an AvailabilityHandler.
func NewAvailabilityHandler(e *engine.Engine) *AvailabilityHandler {
	if e == nil {
		panic("nil engine passed to NewAvailabilityHandler")
	}
	return &AvailabilityHandler{Engine: e}
}

// SlotAvailability handles GET /v1/slots/:id/availability.
func (h *AvailabilityHandler) SlotAvailability(c echo.Context) error {
	tenant, err := tenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	slotID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	snap, err := h.Engine.Availability(c.Request().Context(), tenant, slotID)
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

// PackageCapacity handles GET /v1/package-capacity.  Query parameters
// name the customer and service; the response is the pre-check clients
// run before requesting package coverage on a booking.
func (h *AvailabilityHandler) PackageCapacity(c echo.Context) error {
	tenant, err := tenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	customerID, err := strconv.ParseUint(c.QueryParam("customer_id"), 10, 64)
	if err != nil || customerID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid customer_id"})
	}
	serviceID, err := strconv.ParseUint(c.QueryParam("service_id"), 10, 64)
	if err != nil || serviceID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid service_id"})
	}
	capacity, err := h.Engine.ResolveRemainingPackageCapacity(c.Request().Context(), tenant, customerID, serviceID)
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, capacity)
}
