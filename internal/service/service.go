// Package service holds the registration and payment flows.  Services
// depend on small store interfaces satisfied by the MySQL repositories so
// that the flows can be exercised without a database.
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/iliyamo/event-registration/internal/gateway"
	"github.com/iliyamo/event-registration/internal/model"
	"github.com/iliyamo/event-registration/internal/queue"
	"github.com/iliyamo/event-registration/internal/repository"
)

type EventStore interface {
	GetActiveByName(ctx context.Context, name string) (*model.Event, error)
	ListActive(ctx context.Context) ([]model.Event, error)
}

type RegistrationStore interface {
	Create(ctx context.Context, reg *model.Registration) error
	GetByID(ctx context.Context, id string) (*model.Registration, error)
	UpdatePaymentStatus(ctx context.Context, id string, status model.PaymentStatus) (bool, error)
	List(ctx context.Context) ([]model.Registration, error)
}

type PaymentStore interface {
	Create(ctx context.Context, p *model.Payment) error
	GetByGatewayOrderID(ctx context.Context, orderID string) (*model.Payment, error)
	MarkTerminal(ctx context.Context, orderID string, u repository.TerminalUpdate) (bool, error)
	List(ctx context.Context) ([]model.Payment, error)
}

type ContactStore interface {
	Create(ctx context.Context, m *model.ContactMessage) error
	List(ctx context.Context) ([]model.ContactMessage, error)
}

// OrderGateway creates orders with the payment provider.
type OrderGateway interface {
	CreateOrder(ctx context.Context, in gateway.OrderRequest) (*gateway.Order, error)
	KeyID() string
}

// Notifier delivers fire-and-forget notifications.  A nil Notifier
// disables them.
type Notifier interface {
	RegistrationConfirmed(ctx context.Context, ev queue.RegistrationConfirmedEvent) error
	PaymentStatusChanged(ctx context.Context, ev queue.PaymentStatusEvent) error
}

// Result is a response ready to be written verbatim.  Replayed is set when
// Body came from the idempotency store.
type Result struct {
	Status   int
	Body     []byte
	Replayed bool
}

func replayed(rec *model.IdempotencyRecord) *Result {
	return &Result{Status: rec.ResponseStatus, Body: rec.ResponseBody, Replayed: true}
}

func marshalResult(status int, v any) (*Result, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Result{Status: status, Body: b}, nil
}

func nowUTC() time.Time { return time.Now().UTC() }
