package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avetra/appointment-booking/internal/engine"
	"github.com/avetra/appointment-booking/internal/model"
)

// BookingHandler exposes the booking transaction and lifecycle
// endpoints.
type BookingHandler struct {
	Engine *engine.Engine
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(e *engine.Engine) *BookingHandler {
	if e == nil {
		panic("nil engine passed to NewBookingHandler")
	}
	return &BookingHandler{Engine: e}
}

// Create handles POST /v1/bookings.  The optional hold_id/session_id
// pair consumes a previously acquired hold; the optional
// subscription_id/package_covered_quantity pair pays part or all of the
// visitors with prepaid package credit.
func (h *BookingHandler) Create(c echo.Context) error {
	tenant, err := tenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		SlotID         uint64 `json:"slot_id" validate:"required"`
		CustomerID     uint64 `json:"customer_id" validate:"required"`
		CustomerName   string `json:"customer_name" validate:"required"`
		CustomerEmail  string `json:"customer_email" validate:"required,email"`
		VisitorCount   uint32 `json:"visitor_count" validate:"required,min=1"`
		HoldID         uint64 `json:"hold_id"`
		SessionID      string `json:"session_id"`
		SubscriptionID uint64 `json:"subscription_id"`
		PackageCovered uint32 `json:"package_covered_quantity"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&body); err != nil {
		return err
	}

	booking, err := h.Engine.CreateBooking(c.Request().Context(), engine.CreateBookingInput{
		TenantID:       tenant,
		SlotID:         body.SlotID,
		CustomerID:     body.CustomerID,
		CustomerName:   body.CustomerName,
		CustomerEmail:  body.CustomerEmail,
		VisitorCount:   body.VisitorCount,
		HoldID:         body.HoldID,
		SessionID:      body.SessionID,
		SubscriptionID: body.SubscriptionID,
		PackageCovered: body.PackageCovered,
	})
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusCreated, bookingResponse(booking))
}

// CreateBulk handles POST /v1/bookings/bulk.  One visitor per slot,
// all-or-nothing: if any slot cannot seat its visitor the whole group
// fails and no booking is created.
func (h *BookingHandler) CreateBulk(c echo.Context) error {
	tenant, err := tenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		SlotIDs        []uint64 `json:"slot_ids" validate:"required,min=1"`
		CustomerID     uint64   `json:"customer_id" validate:"required"`
		CustomerName   string   `json:"customer_name" validate:"required"`
		CustomerEmail  string   `json:"customer_email" validate:"required,email"`
		SubscriptionID uint64   `json:"subscription_id"`
		PackageCovered uint32   `json:"package_covered_quantity"`
		GroupID        string   `json:"booking_group_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&body); err != nil {
		return err
	}

	bookings, err := h.Engine.CreateBulkBooking(c.Request().Context(), engine.BulkBookingInput{
		TenantID:       tenant,
		SlotIDs:        body.SlotIDs,
		CustomerID:     body.CustomerID,
		CustomerName:   body.CustomerName,
		CustomerEmail:  body.CustomerEmail,
		SubscriptionID: body.SubscriptionID,
		PackageCovered: body.PackageCovered,
		GroupID:        body.GroupID,
	})
	if err != nil {
		return writeEngineError(c, err)
	}
	out := make([]echo.Map, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, bookingResponse(b))
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"booking_group_id": *bookings[0].BookingGroupID,
		"bookings":         out,
	})
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	tenant, err := tenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	booking, err := h.Engine.BookingByID(c.Request().Context(), tenant, bookingID)
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, bookingResponse(booking))
}

// ChangeStatus handles PATCH /v1/bookings/:id/status.  The body names
// the target status; the engine enforces the transition table and the
// ledger effects of terminal transitions.
func (h *BookingHandler) ChangeStatus(c echo.Context) error {
	tenant, err := tenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var body struct {
		Status string `json:"status" validate:"required"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&body); err != nil {
		return err
	}

	booking, err := h.Engine.ChangeStatus(c.Request().Context(), tenant, bookingID, model.BookingStatus(body.Status))
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, bookingResponse(booking))
}

// Reschedule handles POST /v1/bookings/:id/reschedule.  The response
// carries price_changed so the client can prompt the customer when the
// new slot's service prices differently.
func (h *BookingHandler) Reschedule(c echo.Context) error {
	tenant, err := tenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var body struct {
		NewSlotID uint64 `json:"new_slot_id" validate:"required"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&body); err != nil {
		return err
	}

	booking, priceChanged, err := h.Engine.Reschedule(c.Request().Context(), tenant, bookingID, body.NewSlotID)
	if err != nil {
		return writeEngineError(c, err)
	}
	resp := bookingResponse(booking)
	resp["price_changed"] = priceChanged
	return c.JSON(http.StatusOK, resp)
}
