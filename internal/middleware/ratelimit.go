package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/avetra/appointment-booking/internal/config"
)

// NewRateLimiter returns a fixed-window request limiter backed by
// Redis.  The window counter lives under prefix:tenant:ip:route and is
// created with the window's TTL; INCR past the maximum rejects the
// request with 429.  A Redis outage fails open so the booking flow
// never depends on the limiter.
func NewRateLimiter(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error { return next(c) }
		}
	}

	windowScript := redis.NewScript(`
        local count = redis.call('INCR', KEYS[1])
        if count == 1 then
            redis.call('PEXPIRE', KEYS[1], ARGV[1])
        end
        local ttl = redis.call('PTTL', KEYS[1])
        return { count, ttl }
    `)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, c)
			ctx := c.Request().Context()

			vals, err := windowScript.Run(ctx, rdb, []string{key}, cfg.Window.Milliseconds()).Result()
			if err != nil {
				return next(c)
			}
			arr, ok := vals.([]interface{})
			if !ok || len(arr) != 2 {
				return next(c)
			}
			count, _ := arr[0].(int64)
			ttlMs, _ := arr[1].(int64)

			remaining := int64(cfg.Max) - count
			if remaining < 0 {
				remaining = 0
			}
			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Max))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > int64(cfg.Max) {
				secs := int((time.Duration(ttlMs) * time.Millisecond).Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too_many_requests",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}

func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	tenant, _ := c.Get("tenant_id").(uint64)
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	return fmt.Sprintf("%s:%d:%s:%s %s", cfg.Prefix, tenant, ip, c.Request().Method, c.Path())
}
