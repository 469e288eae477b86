// Package queue defines the notification events exchanged over RabbitMQ and
// the publisher and consumer that move them.
package queue

// Queue names.  Both queues are durable and published through the default
// exchange with the queue name as routing key.
const (
	RegistrationConfirmedQueue = "registration.confirmed"
	PaymentStatusQueue         = "payment.status"
)

// RegistrationConfirmedEvent is published after a registration row commits.
// It carries everything a mailer needs without querying the database.
type RegistrationConfirmedEvent struct {
	RegistrationID string `json:"registration_id"`
	EventName      string `json:"event_name"`
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	EntryFee       string `json:"entry_fee"`
	RegisteredAt   string `json:"registered_at"`
}

// PaymentStatusEvent is published when a webhook moves a payment to PAID or
// FAILED.
type PaymentStatusEvent struct {
	RegistrationID   string `json:"registration_id"`
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	Status           string `json:"status"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	FullName         string `json:"full_name,omitempty"`
	Email            string `json:"email,omitempty"`
	OccurredAt       string `json:"occurred_at"`
}
