package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-registration/internal/middleware"
	"github.com/iliyamo/event-registration/internal/service"
)

// RegistrationHandler serves the public sign-up endpoint.
type RegistrationHandler struct {
	Registrations *service.RegistrationService
}

func NewRegistrationHandler(s *service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{Registrations: s}
}

// registrationReq has no fee field: whatever fee the client sends is
// dropped during decoding.
type registrationReq struct {
	EventName      string `json:"eventName"`
	FullName       string `json:"fullName"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	College        string `json:"college"`
	Year           string `json:"year"`
	Branch         string `json:"branch"`
	TransactionID  string `json:"transactionId"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// Create handles POST /v1/registrations.
func (h *RegistrationHandler) Create(c echo.Context) error {
	var req registrationReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	key := req.IdempotencyKey
	if key == "" {
		key = c.Request().Header.Get("Idempotency-Key")
	}

	res, err := h.Registrations.Submit(c.Request().Context(), service.RegistrationInput{
		EventName:      req.EventName,
		FullName:       req.FullName,
		Email:          req.Email,
		Phone:          req.Phone,
		College:        req.College,
		Year:           req.Year,
		Branch:         req.Branch,
		TransactionID:  req.TransactionID,
		IdempotencyKey: key,
		UserAgent:      c.Request().UserAgent(),
		IP:             middleware.ClientIP(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return writeResult(c, res)
}
