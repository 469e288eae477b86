package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-registration/internal/config"
)

// captureWriter tees the response body while forwarding it to the client.
// Once more than limit bytes were written the capture is abandoned.
type captureWriter struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.overflow {
		if cw.limit > 0 && cw.buf.Len()+len(b) > cw.limit {
			cw.overflow = true
			cw.buf.Reset()
		} else {
			cw.buf.Write(b)
		}
	}
	return cw.ResponseWriter.Write(b)
}

func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
	r := c.Request()
	sum := sha1.Sum([]byte(r.Method + " " + c.Path() + "?" + r.URL.RawQuery))
	return fmt.Sprintf("%s:%x", cfg.Prefix, sum[:])
}

// encodeEntry packs [2 bytes content-type length][content-type][body].
func encodeEntry(contentType string, body []byte) []byte {
	out := make([]byte, 2+len(contentType)+len(body))
	binary.BigEndian.PutUint16(out[0:2], uint16(len(contentType)))
	copy(out[2:], contentType)
	copy(out[2+len(contentType):], body)
	return out
}

func decodeEntry(bs []byte) (contentType string, body []byte, ok bool) {
	if len(bs) < 2 {
		return "", nil, false
	}
	n := int(binary.BigEndian.Uint16(bs[0:2]))
	if 2+n > len(bs) {
		return "", nil, false
	}
	return string(bs[2 : 2+n]), bs[2+n:], true
}

// NewRedisCache caches successful responses of read-only routes in Redis.
// Hits are marked X-Cache: HIT.  Without Redis the middleware is a no-op.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cacheKeyFrom(cfg, c)

			if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
				if ct, body, ok := decodeEntry(bs); ok {
					c.Response().Header().Set("X-Cache", "HIT")
					return c.Blob(http.StatusOK, ct, body)
				}
			} else if err != redis.Nil {
				slog.WarnContext(ctx, "response cache read failed", "key", key, "error", err)
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.overflow {
				return nil
			}
			entry := encodeEntry(c.Response().Header().Get(echo.HeaderContentType), cw.buf.Bytes())
			sctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := rdb.Set(sctx, key, entry, ttl).Err(); err != nil {
				slog.WarnContext(ctx, "response cache write failed", "key", key, "error", err)
			}
			return nil
		}
	}
}
