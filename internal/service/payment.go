package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"

	"github.com/iliyamo/event-registration/internal/apperr"
	"github.com/iliyamo/event-registration/internal/gateway"
	"github.com/iliyamo/event-registration/internal/idempotency"
	"github.com/iliyamo/event-registration/internal/model"
	"github.com/iliyamo/event-registration/internal/repository"
)

// orderLockTTL bounds how long a crashed request can hold its key.
const orderLockTTL = 30 * time.Second

var (
	orderCreatedCounter  = metrics.GetOrCreateCounter(`payment_orders_total{result="created"}`)
	orderReplayedCounter = metrics.GetOrCreateCounter(`payment_orders_total{result="replayed"}`)
	orderGatewayCounter  = metrics.GetOrCreateCounter(`payment_orders_total{result="gateway_error"}`)
	orderOrphanCounter   = metrics.GetOrCreateCounter(`payment_orders_total{result="orphaned"}`)
)

type OrderInput struct {
	RegistrationID string
	IdempotencyKey string
}

type orderFingerprint struct {
	RegistrationID string `json:"registrationId"`
}

type orderResponse struct {
	OrderID  string      `json:"orderId"`
	Amount   json.Number `json:"amount"`
	Currency string      `json:"currency"`
	KeyID    string      `json:"keyId"`
}

type PaymentService struct {
	pricing       *Pricing
	registrations RegistrationStore
	payments      PaymentStore
	idem          idempotency.Store
	locker        idempotency.Locker
	gateway       OrderGateway
	currency      string
	logger        *slog.Logger
	now           func() time.Time
}

func NewPaymentService(p *Pricing, regs RegistrationStore, pays PaymentStore, idem idempotency.Store,
	locker idempotency.Locker, gw OrderGateway, currency string, logger *slog.Logger) *PaymentService {
	if currency == "" {
		currency = "INR"
	}
	return &PaymentService{
		pricing:       p,
		registrations: regs,
		payments:      pays,
		idem:          idem,
		locker:        locker,
		gateway:       gw,
		currency:      currency,
		logger:        logger,
		now:           nowUTC,
	}
}

// CreateOrder opens a gateway order for a registration, charging the fee
// currently in the catalog.  At most one gateway order is created per
// idempotency key.
func (s *PaymentService) CreateOrder(ctx context.Context, in OrderInput) (*Result, error) {
	in.RegistrationID = strings.TrimSpace(in.RegistrationID)
	if _, err := uuid.Parse(in.RegistrationID); err != nil {
		return nil, apperr.Validation("validation_error", "Invalid registration ID")
	}
	key, err := idempotency.NormalizeKey(in.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, apperr.Validation("validation_error", "Idempotency key is required")
	}

	release, ok, err := s.locker.Acquire(ctx, key, orderLockTTL)
	if err != nil {
		return nil, apperr.Internal("failed to lock idempotency key", err)
	}
	if !ok {
		return nil, apperr.Conflict("request_in_progress", "A request with this idempotency key is already being processed")
	}
	defer release()

	hash, err := idempotency.Hash(orderFingerprint{RegistrationID: in.RegistrationID})
	if err != nil {
		return nil, apperr.Internal("failed to hash request", err)
	}
	rec, err := idempotency.Replay(ctx, s.idem, key, hash, s.now())
	if err != nil {
		return nil, err
	}
	if rec != nil {
		orderReplayedCounter.Inc()
		return replayed(rec), nil
	}

	reg, err := s.registrations.GetByID(ctx, in.RegistrationID)
	if errors.Is(err, repository.ErrRegistrationNotFound) {
		return nil, apperr.NotFound("registration_not_found", "Registration not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load registration", err)
	}
	if reg.PaymentStatus == model.PaymentPaid {
		return nil, apperr.Conflict("already_paid", "This registration has already been paid")
	}

	fee, err := s.pricing.EntryFee(ctx, reg.EventName)
	if err != nil {
		return nil, err
	}
	minor, err := MinorUnits(fee)
	if err != nil {
		return nil, err
	}

	order, err := s.gateway.CreateOrder(ctx, gateway.OrderRequest{
		Amount:   minor,
		Currency: s.currency,
		Receipt:  receipt(reg.ID),
		Notes: map[string]string{
			"registration_id": reg.ID,
			"event_name":      reg.EventName,
			"email":           reg.Email,
		},
	})
	if err != nil {
		orderGatewayCounter.Inc()
		s.logger.ErrorContext(ctx, "gateway order creation failed", "registration_id", reg.ID, "error", err)
		return nil, apperr.Gateway("Failed to create payment order", err)
	}

	now := s.now()
	payment := &model.Payment{
		ID:             uuid.NewString(),
		RegistrationID: reg.ID,
		GatewayOrderID: order.ID,
		Amount:         fee,
		Currency:       s.currency,
		Status:         model.PaymentPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		orderOrphanCounter.Inc()
		s.logger.ErrorContext(ctx, "orphaned gateway order: payment row not stored",
			"order_id", order.ID, "registration_id", reg.ID, "amount_minor", minor, "error", err)
		return nil, apperr.Internal("Failed to create payment record", err)
	}
	orderCreatedCounter.Inc()

	res, err := marshalResult(http.StatusCreated, orderResponse{
		OrderID:  order.ID,
		Amount:   feeNumber(fee),
		Currency: s.currency,
		KeyID:    s.gateway.KeyID(),
	})
	if err != nil {
		return nil, apperr.Internal("failed to encode response", err)
	}
	if err := s.idem.Save(ctx, idempotency.NewRecord(key, hash, res.Status, res.Body, now, idempotency.OrderTTL)); err != nil {
		s.logger.ErrorContext(ctx, "failed to store idempotency record", "idempotency_key", key, "order_id", order.ID, "error", err)
	}
	s.logger.InfoContext(ctx, "payment order created", "order_id", order.ID, "registration_id", reg.ID, "amount_minor", minor)
	return res, nil
}

// receipt is the provider-side reference of a registration's order.
func receipt(registrationID string) string {
	if len(registrationID) > 8 {
		registrationID = registrationID[:8]
	}
	return "reg_" + registrationID
}
