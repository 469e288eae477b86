package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-registration/internal/service"
)

// EventsHandler lists the public catalog.
type EventsHandler struct {
	Pricing *service.Pricing
}

func NewEventsHandler(p *service.Pricing) *EventsHandler { return &EventsHandler{Pricing: p} }

// List handles GET /v1/events.
func (h *EventsHandler) List(c echo.Context) error {
	events, err := h.Pricing.ListEvents(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"events": events})
}
