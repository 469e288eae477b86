package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher keeps one connection and channel open and redials once when a
// publish finds them closed.  It is safe for concurrent use.
type Publisher struct {
	url  string
	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher dials url and declares the notification queues.
func NewPublisher(url string) (*Publisher, error) {
	p := &Publisher{url: url}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	for _, q := range []string{RegistrationConfirmedQueue, PaymentStatusQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}
	p.conn, p.ch = conn, ch
	return nil
}

// PublishJSON sends v as a persistent message to queue.
func (p *Publisher) PublishJSON(ctx context.Context, queue string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", queue, err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil || p.ch.IsClosed() {
		p.closeLocked()
		if err := p.connect(); err != nil {
			return err
		}
	}
	if err := p.ch.PublishWithContext(ctx, "", queue, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", queue, err)
	}
	return nil
}

// RegistrationConfirmed implements the notifier used by the registration flow.
func (p *Publisher) RegistrationConfirmed(ctx context.Context, ev RegistrationConfirmedEvent) error {
	return p.PublishJSON(ctx, RegistrationConfirmedQueue, ev)
}

// PaymentStatusChanged implements the notifier used by webhook reconciliation.
func (p *Publisher) PaymentStatusChanged(ctx context.Context, ev PaymentStatusEvent) error {
	return p.PublishJSON(ctx, PaymentStatusQueue, ev)
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *Publisher) closeLocked() error {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}
