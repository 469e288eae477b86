package middleware

// identity.go resolves who is calling: the client address used for rate
// limiting and audit columns, and the admin user id set by JWTAuth.

import (
	"net"
	"strings"

	"github.com/labstack/echo/v4"
)

// ClientIP returns the first hop of X-Forwarded-For, then X-Real-IP, then
// the connection's remote address.
func ClientIP(c echo.Context) string {
	r := c.Request()
	if xff := r.Header.Get(echo.HeaderXForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xr := strings.TrimSpace(r.Header.Get(echo.HeaderXRealIP)); xr != "" {
		return xr
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// userID returns the authenticated admin id stored by JWTAuth, or "" for
// anonymous callers.
func userID(c echo.Context) string {
	if s, ok := c.Get("user_id").(string); ok {
		return s
	}
	return ""
}
