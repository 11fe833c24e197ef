// Package router wires the HTTP routes of the booking API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/avetra/appointment-booking/internal/config"
	"github.com/avetra/appointment-booking/internal/handler"
	"github.com/avetra/appointment-booking/internal/middleware"
)

// Handlers groups the handler set the router registers.
type Handlers struct {
	Holds        *handler.HoldHandler
	Bookings     *handler.BookingHandler
	Availability *handler.AvailabilityHandler
}

// Register mounts all routes on the Echo instance.  Every booking
// endpoint lives under /v1 behind JWT authentication and the Redis
// rate limiter; the availability snapshot additionally sits behind the
// short-TTL response cache.  Only the health check is public.
func Register(e *echo.Echo, h Handlers, jwtSecret string, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(jwtSecret))
	v1.Use(middleware.RequireRole("OWNER", "STAFF", "CUSTOMER"))
	v1.Use(middleware.NewRateLimiter(config.LoadRateLimitConfig(), rdb))

	cached := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	v1.POST("/slots/:id/holds", h.Holds.Acquire)
	v1.DELETE("/holds/:id", h.Holds.Release)
	v1.GET("/slots/:id/availability", h.Availability.SlotAvailability, cached)
	v1.GET("/package-capacity", h.Availability.PackageCapacity)

	v1.POST("/bookings", h.Bookings.Create)
	v1.POST("/bookings/bulk", h.Bookings.CreateBulk)
	v1.GET("/bookings/:id", h.Bookings.Get)
	v1.PATCH("/bookings/:id/status", h.Bookings.ChangeStatus)
	v1.POST("/bookings/:id/reschedule", h.Bookings.Reschedule)
}
