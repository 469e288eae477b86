package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"github.com/iliyamo/event-registration/internal/apperr"
	"github.com/iliyamo/event-registration/internal/gateway"
	"github.com/iliyamo/event-registration/internal/model"
	"github.com/iliyamo/event-registration/internal/queue"
	"github.com/iliyamo/event-registration/internal/repository"
)

// Supported webhook event types.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
)

var (
	webhookProcessedCounter = metrics.GetOrCreateCounter(`webhooks_total{result="processed"}`)
	webhookDuplicateCounter = metrics.GetOrCreateCounter(`webhooks_total{result="already_processed"}`)
	webhookRejectedCounter  = metrics.GetOrCreateCounter(`webhooks_total{result="rejected"}`)
)

// webhookEvent is the part of the provider's payload we act on.
type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type paymentEntity struct {
	ID       string      `json:"id"`
	OrderID  string      `json:"order_id"`
	Status   string      `json:"status"`
	Method   string      `json:"method"`
	Amount   json.Number `json:"amount"`
	Currency string      `json:"currency"`
}

// WebhookOutcome describes what a delivery did.
type WebhookOutcome struct {
	Status           string              `json:"status"` // processed or already_processed
	OrderID          string              `json:"orderId"`
	GatewayPaymentID string              `json:"paymentId"`
	PaymentStatus    model.PaymentStatus `json:"paymentStatus,omitempty"`
}

type WebhookService struct {
	payments      PaymentStore
	registrations RegistrationStore
	notifier      Notifier
	tasks         *PostCommit
	secret        string
	logger        *slog.Logger
	now           func() time.Time
}

func NewWebhookService(pays PaymentStore, regs RegistrationStore, n Notifier, tasks *PostCommit, secret string, logger *slog.Logger) *WebhookService {
	return &WebhookService{
		payments:      pays,
		registrations: regs,
		notifier:      n,
		tasks:         tasks,
		secret:        secret,
		logger:        logger,
		now:           nowUTC,
	}
}

// Handle authenticates a webhook delivery and applies it.  Deliveries may
// arrive more than once and in any order; PAID and FAILED never change.
func (s *WebhookService) Handle(ctx context.Context, raw []byte, signature string) (*WebhookOutcome, error) {
	out, err := s.handle(ctx, raw, signature)
	if err != nil {
		webhookRejectedCounter.Inc()
	}
	return out, err
}

func (s *WebhookService) handle(ctx context.Context, raw []byte, signature string) (*WebhookOutcome, error) {
	if signature == "" {
		return nil, apperr.Unauthorized("missing_signature", "Missing signature")
	}
	if !gateway.VerifySignature(raw, signature, s.secret) {
		s.logger.WarnContext(ctx, "webhook signature mismatch")
		return nil, apperr.Unauthorized("invalid_signature", "Invalid signature")
	}

	ev, err := decodeWebhook(raw)
	if err != nil {
		return nil, apperr.Validation("invalid_payload", "Invalid webhook payload")
	}
	if ev.Event != EventPaymentCaptured && ev.Event != EventPaymentFailed {
		return nil, apperr.Validation("unsupported_event_type", "Unsupported event type")
	}
	if ev.Payload.Payment == nil || ev.Payload.Payment.Entity.OrderID == "" || ev.Payload.Payment.Entity.ID == "" {
		return nil, apperr.Validation("invalid_payload", "Invalid webhook payload")
	}
	entity := ev.Payload.Payment.Entity

	target := model.PaymentFailed
	if ev.Event == EventPaymentCaptured {
		if entity.Status != "captured" {
			return nil, apperr.Validation("ambiguous_payment_status", "Captured event without a captured payment")
		}
		target = model.PaymentPaid
	}

	payment, err := s.payments.GetByGatewayOrderID(ctx, entity.OrderID)
	if errors.Is(err, repository.ErrPaymentNotFound) {
		return nil, apperr.NotFound("payment_not_found", "Payment record not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load payment", err)
	}

	outcome := &WebhookOutcome{OrderID: entity.OrderID, GatewayPaymentID: entity.ID}
	if payment.Status.Terminal() {
		webhookDuplicateCounter.Inc()
		outcome.Status = "already_processed"
		outcome.PaymentStatus = payment.Status
		return outcome, nil
	}

	now := s.now()
	won, err := s.payments.MarkTerminal(ctx, entity.OrderID, repository.TerminalUpdate{
		Status:           target,
		GatewayPaymentID: entity.ID,
		PaymentMethod:    entity.Method,
		At:               now,
	})
	if err != nil {
		return nil, apperr.Internal("failed to update payment status", err)
	}
	if !won {
		webhookDuplicateCounter.Inc()
		s.logger.InfoContext(ctx, "webhook lost race to a concurrent delivery", "order_id", entity.OrderID)
		outcome.Status = "already_processed"
		current, err := s.payments.GetByGatewayOrderID(ctx, entity.OrderID)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to re-read payment after lost race", "order_id", entity.OrderID, "error", err)
			return outcome, nil
		}
		outcome.PaymentStatus = current.Status
		return outcome, nil
	}
	webhookProcessedCounter.Inc()
	outcome.Status = "processed"
	outcome.PaymentStatus = target
	s.logger.InfoContext(ctx, "payment reconciled", "order_id", entity.OrderID, "payment_id", entity.ID, "status", string(target))

	updated, err := s.registrations.UpdatePaymentStatus(ctx, payment.RegistrationID, target)
	switch {
	case err != nil:
		s.logger.ErrorContext(ctx, "failed to propagate payment status to registration",
			"registration_id", payment.RegistrationID, "order_id", entity.OrderID, "status", string(target), "error", err)
	case !updated:
		s.logger.InfoContext(ctx, "registration status left unchanged (already paid or same status)",
			"registration_id", payment.RegistrationID, "order_id", entity.OrderID, "status", string(target))
	}

	if s.notifier != nil {
		ev := queue.PaymentStatusEvent{
			RegistrationID:   payment.RegistrationID,
			GatewayOrderID:   entity.OrderID,
			GatewayPaymentID: entity.ID,
			Status:           string(target),
			Amount:           payment.Amount.String(),
			Currency:         payment.Currency,
			OccurredAt:       now.Format(time.RFC3339),
		}
		s.tasks.Go("payment_status_notification", func(ctx context.Context) error {
			if reg, err := s.registrations.GetByID(ctx, ev.RegistrationID); err == nil {
				ev.FullName, ev.Email = reg.FullName, reg.Email
			}
			return s.notifier.PaymentStatusChanged(ctx, ev)
		})
	}
	return outcome, nil
}

func decodeWebhook(raw []byte) (*webhookEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var ev webhookEvent
	if err := dec.Decode(&ev); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after webhook payload")
	}
	return &ev, nil
}
