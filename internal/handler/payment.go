package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-registration/internal/apperr"
	"github.com/iliyamo/event-registration/internal/service"
)

// maxWebhookBody caps provider payloads read for signature checks.
const maxWebhookBody = 1 << 20

// PaymentHandler serves order creation and the provider webhook.
type PaymentHandler struct {
	Payments *service.PaymentService
	Webhooks *service.WebhookService
}

func NewPaymentHandler(p *service.PaymentService, w *service.WebhookService) *PaymentHandler {
	return &PaymentHandler{Payments: p, Webhooks: w}
}

type createOrderReq struct {
	RegistrationID string `json:"registrationId"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// CreateOrder handles POST /v1/payments/orders.
func (h *PaymentHandler) CreateOrder(c echo.Context) error {
	var req createOrderReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	key := req.IdempotencyKey
	if key == "" {
		key = c.Request().Header.Get("Idempotency-Key")
	}
	res, err := h.Payments.CreateOrder(c.Request().Context(), service.OrderInput{
		RegistrationID: req.RegistrationID,
		IdempotencyKey: key,
	})
	if err != nil {
		return respondError(c, err)
	}
	return writeResult(c, res)
}

// Webhook handles POST /v1/payments/webhook.  The raw body is read before
// any decoding because the signature covers the exact bytes sent.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	r := c.Request()
	raw, err := io.ReadAll(http.MaxBytesReader(c.Response(), r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return respondError(c, apperr.Validation("payload_too_large", "webhook payload too large"))
		}
		return badBody(c)
	}

	out, err := h.Webhooks.Handle(r.Context(), raw, r.Header.Get("X-Razorpay-Signature"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": out})
}
