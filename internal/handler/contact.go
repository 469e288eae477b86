package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-registration/internal/middleware"
	"github.com/iliyamo/event-registration/internal/service"
)

type ContactHandler struct {
	Contacts *service.ContactService
}

func NewContactHandler(s *service.ContactService) *ContactHandler {
	return &ContactHandler{Contacts: s}
}

type contactReq struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// Create handles POST /v1/contact.
func (h *ContactHandler) Create(c echo.Context) error {
	var req contactReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if _, err := h.Contacts.Submit(c.Request().Context(), service.ContactInput{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Message:   req.Message,
		UserAgent: c.Request().UserAgent(),
		IP:        middleware.ClientIP(c),
	}); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "message": "Message sent successfully"})
}
