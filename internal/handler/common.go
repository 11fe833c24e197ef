// Package handler contains the HTTP handlers of the booking API.  All
// business rules live in the engine; handlers only bind and validate
// request bodies, enforce that a tenant claim is present, and translate
// the engine's error taxonomy into HTTP status codes.
package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/avetra/appointment-booking/internal/engine"
	"github.com/avetra/appointment-booking/internal/model"
)

// Validator adapts go-playground/validator to Echo's c.Validate.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds the request validator shared by all handlers.
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate implements echo.Validator.
func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// tenantID reads the tenant claim the JWT middleware stored in context.
func tenantID(c echo.Context) (uint64, error) {
	id, ok := c.Get("tenant_id").(uint64)
	if !ok || id == 0 {
		return 0, fmt.Errorf("no tenant in context")
	}
	return id, nil
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses.
// Capacity and credit conflicts are expected under load and reported as
// 409 so clients retry with a different slot or payment mix; an expired
// hold is 410 because the resource is permanently gone.
func writeEngineError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, engine.ErrSlotNotFound),
		errors.Is(err, engine.ErrBookingNotFound),
		errors.Is(err, engine.ErrSubscriptionNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, engine.ErrTenantMismatch):
		log.Printf("handler: %s %s: cross-tenant access: %v", c.Request().Method, c.Path(), err)
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, engine.ErrInputInconsistency):
		log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, engine.ErrLockExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": err.Error()})
	case errors.Is(err, engine.ErrInsufficientCapacity),
		errors.Is(err, engine.ErrInsufficientCredit),
		errors.Is(err, engine.ErrLockSessionMismatch),
		errors.Is(err, engine.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// bookingResponse shapes one booking for API responses.
func bookingResponse(b *model.Booking) echo.Map {
	resp := echo.Map{
		"id":                       b.ID,
		"tenant_id":                b.TenantID,
		"service_id":               b.ServiceID,
		"slot_id":                  b.SlotID,
		"customer_id":              b.CustomerID,
		"customer_name":            b.CustomerName,
		"customer_email":           b.CustomerEmail,
		"visitor_count":            b.VisitorCount,
		"status":                   b.Status,
		"payment_status":           b.PaymentStatus,
		"price_cents":              b.PriceCents,
		"package_covered_quantity": b.PackageCovered,
		"paid_quantity":            b.PaidQuantity,
		"ticket_token":             b.TicketToken,
		"created_at":               b.CreatedAt,
		"updated_at":               b.UpdatedAt,
	}
	if b.EmployeeID != nil {
		resp["employee_id"] = *b.EmployeeID
	}
	if b.BookingGroupID != nil {
		resp["booking_group_id"] = *b.BookingGroupID
	}
	if b.SubscriptionID != nil {
		resp["subscription_id"] = *b.SubscriptionID
	}
	return resp
}
