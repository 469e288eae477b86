package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-registration/internal/apperr"
	"github.com/iliyamo/event-registration/internal/service"
)

// HeaderIdempotentReplayed marks responses served from the idempotency store.
const HeaderIdempotentReplayed = "Idempotent-Replayed"

// respondError writes err as {"error": code, "message": text}.  Only the
// public message leaves the process; the cause is logged.
func respondError(c echo.Context, err error) error {
	ae := apperr.From(err)
	status := ae.Status()
	ctx := c.Request().Context()
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "request failed", "path", c.Path(), "code", ae.Code, "error", err)
	} else {
		slog.InfoContext(ctx, "request rejected", "path", c.Path(), "status", status, "code", ae.Code)
	}
	return c.JSON(status, echo.Map{"error": ae.Code, "message": ae.PublicMessage()})
}

// writeResult sends a prepared response body as is.
func writeResult(c echo.Context, res *service.Result) error {
	if res.Replayed {
		c.Response().Header().Set(HeaderIdempotentReplayed, "true")
	}
	return c.JSONBlob(res.Status, res.Body)
}

func badBody(c echo.Context) error {
	return respondError(c, apperr.Validation("invalid_body", "invalid body"))
}
