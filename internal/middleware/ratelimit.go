package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-registration/internal/ratelimit"
)

// RateLimit admits requests through the sliding-window limiter under class.
// Admitted requests carry X-RateLimit-* headers; rejected ones also get
// Retry-After and a 429 body.  When the limiter is degraded the request
// passes without headers.
func RateLimit(l *ratelimit.Limiter, class string) echo.MiddlewareFunc {
	strategy := l.Class(class).Strategy
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity := ratelimit.Identity(strategy, ClientIP(c), userID(c))
			d := l.Admit(c.Request().Context(), identity, class)
			if d.Degraded {
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))

			if !d.Allowed {
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				h.Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too_many_requests",
					"message":     "rate limit exceeded, please retry later",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}
