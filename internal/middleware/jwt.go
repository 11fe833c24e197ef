package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// JWTAuth returns an Echo middleware that validates a Bearer access
// token and injects its claims into the request context.  Every booking
// endpoint is tenant-scoped, so the token must carry a numeric
// tenant_id claim alongside the usual subject; handlers read both via
// c.Get("tenant_id") and c.Get("user_id").
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			tenantID, ok := claimUint64(claims, "tenant_id")
			if !ok || tenantID == 0 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token missing tenant"})
			}
			c.Set("tenant_id", tenantID)
			if userID, ok := claimUint64(claims, "sub"); ok {
				c.Set("user_id", userID)
			}
			c.Set("role", claims["role"])
			return next(c)
		}
	}
}

// claimUint64 reads a numeric claim.  JSON numbers decode as float64;
// string-encoded ids are tolerated because some token issuers stringify
// the subject.
func claimUint64(claims jwt.MapClaims, key string) (uint64, bool) {
	switch v := claims[key].(type) {
	case float64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case string:
		var n uint64
		for _, r := range v {
			if r < '0' || r > '9' {
				return 0, false
			}
			n = n*10 + uint64(r-'0')
		}
		return n, v != ""
	}
	return 0, false
}
