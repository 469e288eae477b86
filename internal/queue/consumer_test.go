package queue

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumer_Handle(t *testing.T) {
	dir := t.TempDir()
	c := NewConsumer("", dir, slog.Default())

	reg, err := json.Marshal(RegistrationConfirmedEvent{
		RegistrationID: "r1", EventName: "Tech Quiz", FullName: "Asha Rao", Email: "asha@example.com",
		EntryFee: "50", RegisteredAt: "2025-03-01T10:00:00Z",
	})
	require.NoError(t, err)
	pay, err := json.Marshal(PaymentStatusEvent{
		RegistrationID: "r1", GatewayOrderID: "order_1", GatewayPaymentID: "pay_1", Status: "PAID",
		Amount: "50", Currency: "INR", Email: "asha@example.com", OccurredAt: "2025-03-01T10:05:00Z",
	})
	require.NoError(t, err)

	require.NoError(t, c.Handle(RegistrationConfirmedQueue, reg))
	require.NoError(t, c.Handle(PaymentStatusQueue, pay))

	out, err := os.ReadFile(filepath.Join(dir, "notifications.log"))
	require.NoError(t, err)
	assert.Contains(t, string(out), `Registration confirmed | registration_id=r1 | event="Tech Quiz"`)
	assert.Contains(t, string(out), "Payment PAID | registration_id=r1 | order_id=order_1 | payment_id=pay_1 | amount=50 INR")
}

func TestConsumer_HandleRejectsGarbage(t *testing.T) {
	c := NewConsumer("", t.TempDir(), slog.Default())

	assert.Error(t, c.Handle(PaymentStatusQueue, []byte("{not json")))
	assert.Error(t, c.Handle("booking.confirmed", []byte("{}")))
}
