package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-registration/internal/apperr"
	"github.com/iliyamo/event-registration/internal/gateway"
	"github.com/iliyamo/event-registration/internal/model"
)

func webhookBody(event, orderID, paymentID, status string) []byte {
	return []byte(fmt.Sprintf(`{
  "entity": "event",
  "account_id": "acc_test",
  "event": %q,
  "contains": ["payment"],
  "payload": {
    "payment": {
      "entity": {
        "id": %q,
        "entity": "payment",
        "amount": 5000,
        "currency": "INR",
        "status": %q,
        "order_id": %q,
        "method": "upi",
        "captured": true
      }
    }
  },
  "created_at": 1740823500
}`, event, paymentID, status, orderID))
}

// withOrder registers a participant and opens an order, returning its id.
func withOrder(t *testing.T, f *fixture) (regID, orderID string) {
	t.Helper()
	regID = register(t, f, sampleInput())
	res, err := f.payment.CreateOrder(context.Background(), OrderInput{RegistrationID: regID, IdempotencyKey: "wh-" + regID})
	require.NoError(t, err)
	var body orderBody
	require.NoError(t, json.Unmarshal(res.Body, &body))
	return regID, body.OrderID
}

func deliver(f *fixture, body []byte) (*WebhookOutcome, error) {
	return f.webhook.Handle(context.Background(), body, gateway.Sign(body, webhookSecret))
}

func TestWebhook_CapturedMarksPaid(t *testing.T) {
	f := newFixture()
	regID, orderID := withOrder(t, f)
	paidAt := time.Date(2025, 3, 1, 10, 5, 0, 0, time.UTC)
	f.webhook.now = func() time.Time { return paidAt }

	out, err := deliver(f, webhookBody(EventPaymentCaptured, orderID, "pay_1", "captured"))
	require.NoError(t, err)
	assert.Equal(t, "processed", out.Status)
	assert.Equal(t, model.PaymentPaid, out.PaymentStatus)

	p, _ := f.payments.GetByGatewayOrderID(context.Background(), orderID)
	assert.Equal(t, model.PaymentPaid, p.Status)
	require.NotNil(t, p.PaidAt)
	assert.Equal(t, paidAt, *p.PaidAt)
	assert.Equal(t, "pay_1", *p.GatewayPaymentID)
	assert.Equal(t, "upi", *p.PaymentMethod)

	reg, _ := f.registrations.GetByID(context.Background(), regID)
	assert.Equal(t, model.PaymentPaid, reg.PaymentStatus)

	f.tasks.Wait()
	require.Len(t, f.notifier.payments, 1)
	assert.Equal(t, "PAID", f.notifier.payments[0].Status)
	assert.Equal(t, "asha@example.com", f.notifier.payments[0].Email)
}

func TestWebhook_ReplayKeepsFirstOutcome(t *testing.T) {
	f := newFixture()
	_, orderID := withOrder(t, f)
	first := time.Date(2025, 3, 1, 10, 5, 0, 0, time.UTC)
	f.webhook.now = func() time.Time { return first }

	_, err := deliver(f, webhookBody(EventPaymentCaptured, orderID, "pay_1", "captured"))
	require.NoError(t, err)

	f.webhook.now = func() time.Time { return first.Add(time.Hour) }
	out, err := deliver(f, webhookBody(EventPaymentCaptured, orderID, "pay_1", "captured"))
	require.NoError(t, err)
	assert.Equal(t, "already_processed", out.Status)

	// a late failure for the same order must not undo the capture
	out, err = deliver(f, webhookBody(EventPaymentFailed, orderID, "pay_2", "failed"))
	require.NoError(t, err)
	assert.Equal(t, "already_processed", out.Status)
	assert.Equal(t, model.PaymentPaid, out.PaymentStatus)

	p, _ := f.payments.GetByGatewayOrderID(context.Background(), orderID)
	assert.Equal(t, model.PaymentPaid, p.Status)
	assert.Equal(t, first, *p.PaidAt)
	assert.Nil(t, p.FailedAt)
	assert.Equal(t, "pay_1", *p.GatewayPaymentID)
}

func TestWebhook_FailedMarksFailed(t *testing.T) {
	f := newFixture()
	regID, orderID := withOrder(t, f)

	out, err := deliver(f, webhookBody(EventPaymentFailed, orderID, "pay_9", "failed"))
	require.NoError(t, err)
	assert.Equal(t, model.PaymentFailed, out.PaymentStatus)

	p, _ := f.payments.GetByGatewayOrderID(context.Background(), orderID)
	assert.Equal(t, model.PaymentFailed, p.Status)
	assert.NotNil(t, p.FailedAt)
	reg, _ := f.registrations.GetByID(context.Background(), regID)
	assert.Equal(t, model.PaymentFailed, reg.PaymentStatus)
}

func TestWebhook_SignatureEnforced(t *testing.T) {
	f := newFixture()
	_, orderID := withOrder(t, f)
	body := webhookBody(EventPaymentCaptured, orderID, "pay_1", "captured")

	tests := []struct {
		name string
		sig  string
		code string
	}{
		{name: "Missing", sig: "", code: "missing_signature"},
		{name: "WrongSecret", sig: gateway.Sign(body, "not-the-secret"), code: "invalid_signature"},
		{name: "Garbage", sig: "zzzz", code: "invalid_signature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.webhook.Handle(context.Background(), body, tt.sig)
			require.Error(t, err)
			ae := apperr.From(err)
			assert.Equal(t, apperr.KindUnauthorized, ae.Kind)
			assert.Equal(t, tt.code, ae.Code)

			p, _ := f.payments.GetByGatewayOrderID(context.Background(), orderID)
			assert.Equal(t, model.PaymentPending, p.Status)
		})
	}

	// a body altered after signing fails as well
	tampered := webhookBody(EventPaymentCaptured, orderID, "pay_X", "captured")
	_, err := f.webhook.Handle(context.Background(), tampered, gateway.Sign(body, webhookSecret))
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestWebhook_RejectsBadPayloads(t *testing.T) {
	f := newFixture()
	_, orderID := withOrder(t, f)

	tests := []struct {
		name string
		body []byte
		kind apperr.Kind
		code string
	}{
		{name: "NotJSON", body: []byte("{oops"), kind: apperr.KindValidation, code: "invalid_payload"},
		{name: "WrongTypes", body: []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":5}}}}`), kind: apperr.KindValidation, code: "invalid_payload"},
		{name: "Unsupported", body: webhookBody("order.paid", orderID, "pay_1", "captured"), kind: apperr.KindValidation, code: "unsupported_event_type"},
		{name: "NoOrderID", body: webhookBody(EventPaymentCaptured, "", "pay_1", "captured"), kind: apperr.KindValidation, code: "invalid_payload"},
		{name: "NoPaymentID", body: webhookBody(EventPaymentCaptured, orderID, "", "captured"), kind: apperr.KindValidation, code: "invalid_payload"},
		{name: "Ambiguous", body: webhookBody(EventPaymentCaptured, orderID, "pay_1", "authorized"), kind: apperr.KindValidation, code: "ambiguous_payment_status"},
		{name: "UnknownOrder", body: webhookBody(EventPaymentCaptured, "order_missing", "pay_1", "captured"), kind: apperr.KindNotFound, code: "payment_not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := deliver(f, tt.body)
			require.Error(t, err)
			ae := apperr.From(err)
			assert.Equal(t, tt.kind, ae.Kind)
			assert.Equal(t, tt.code, ae.Code)
		})
	}

	p, _ := f.payments.GetByGatewayOrderID(context.Background(), orderID)
	assert.Equal(t, model.PaymentPending, p.Status)
}

func TestWebhook_RegistrationPropagationIsBestEffort(t *testing.T) {
	f := newFixture()
	regID, orderID := withOrder(t, f)
	f.registrations.updateErr = errBoom

	out, err := deliver(f, webhookBody(EventPaymentCaptured, orderID, "pay_1", "captured"))
	require.NoError(t, err)
	assert.Equal(t, "processed", out.Status)

	p, _ := f.payments.GetByGatewayOrderID(context.Background(), orderID)
	assert.Equal(t, model.PaymentPaid, p.Status)
	reg, _ := f.registrations.GetByID(context.Background(), regID)
	assert.Equal(t, model.PaymentPending, reg.PaymentStatus)
}

func TestWebhook_LateFailureOfOlderOrderKeepsRegistrationPaid(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	regID := register(t, f, sampleInput())

	openOrder := func(key string) string {
		res, err := f.payment.CreateOrder(ctx, OrderInput{RegistrationID: regID, IdempotencyKey: key})
		require.NoError(t, err)
		var body orderBody
		require.NoError(t, json.Unmarshal(res.Body, &body))
		return body.OrderID
	}
	abandoned := openOrder("attempt-1")
	retried := openOrder("attempt-2")
	require.NotEqual(t, abandoned, retried)

	out, err := deliver(f, webhookBody(EventPaymentCaptured, retried, "pay_ok", "captured"))
	require.NoError(t, err)
	assert.Equal(t, "processed", out.Status)

	out, err = deliver(f, webhookBody(EventPaymentFailed, abandoned, "pay_late", "failed"))
	require.NoError(t, err)
	assert.Equal(t, "processed", out.Status)
	assert.Equal(t, model.PaymentFailed, out.PaymentStatus)

	p, _ := f.payments.GetByGatewayOrderID(ctx, abandoned)
	assert.Equal(t, model.PaymentFailed, p.Status)
	reg, _ := f.registrations.GetByID(ctx, regID)
	assert.Equal(t, model.PaymentPaid, reg.PaymentStatus)
}

func TestWebhook_FailedOrderThenCaptureOnRetryMarksPaid(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	regID, first := withOrder(t, f)

	_, err := deliver(f, webhookBody(EventPaymentFailed, first, "pay_1", "failed"))
	require.NoError(t, err)
	reg, _ := f.registrations.GetByID(ctx, regID)
	require.Equal(t, model.PaymentFailed, reg.PaymentStatus)

	res, err := f.payment.CreateOrder(ctx, OrderInput{RegistrationID: regID, IdempotencyKey: "retry-" + regID})
	require.NoError(t, err)
	var body orderBody
	require.NoError(t, json.Unmarshal(res.Body, &body))

	_, err = deliver(f, webhookBody(EventPaymentCaptured, body.OrderID, "pay_2", "captured"))
	require.NoError(t, err)
	reg, _ = f.registrations.GetByID(ctx, regID)
	assert.Equal(t, model.PaymentPaid, reg.PaymentStatus)
}

func TestWebhook_LostRaceWithFailedRereadOmitsStatus(t *testing.T) {
	f := newFixture()
	_, orderID := withOrder(t, f)
	f.payments.loseRace = true
	f.payments.rereadErr = errBoom

	out, err := deliver(f, webhookBody(EventPaymentCaptured, orderID, "pay_1", "captured"))
	require.NoError(t, err)
	assert.Equal(t, "already_processed", out.Status)
	assert.Empty(t, out.PaymentStatus)

	b, err := json.Marshal(out)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "paymentStatus")
}
