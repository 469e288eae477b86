package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-registration/internal/service"
)

// AdminHandler exposes the organizer's read-only lists.  Routes are guarded
// by JWTAuth and RequireRole("ADMIN").
type AdminHandler struct {
	Admin *service.AdminService
}

func NewAdminHandler(s *service.AdminService) *AdminHandler { return &AdminHandler{Admin: s} }

func (h *AdminHandler) Registrations(c echo.Context) error {
	regs, err := h.Admin.Registrations(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"registrations": regs})
}

func (h *AdminHandler) Messages(c echo.Context) error {
	msgs, err := h.Admin.Messages(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": msgs})
}

func (h *AdminHandler) Payments(c echo.Context) error {
	pays, err := h.Admin.Payments(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"payments": pays})
}
