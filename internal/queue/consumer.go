package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer drains the notification queues and appends one line per event to
// <dir>/notifications.log.  The log file is the hand-off point to the mail
// delivery job.
type Consumer struct {
	url    string
	dir    string
	logger *slog.Logger
}

func NewConsumer(url, dir string, logger *slog.Logger) *Consumer {
	return &Consumer{url: url, dir: dir, logger: logger}
}

// Run connects, consumes and reconnects with backoff until ctx is done.
func (c *Consumer) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("notification consumer: dial failed", "error", err, "retry_in", backoff.String())
			if !sleepCtx(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("notification consumer: loop ended, reconnecting", "error", err)
		if !sleepCtx(ctx, 2*time.Second) {
			return
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.logger.Warn("notification consumer: set QoS failed", "error", err)
	}

	merged := make(chan amqp.Delivery)
	for _, q := range []string{RegistrationConfirmedQueue, PaymentStatusQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", q, err)
		}
		msgs, err := ch.Consume(q, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", q, err)
		}
		go func(msgs <-chan amqp.Delivery) {
			for d := range msgs {
				select {
				case merged <- d:
				case <-ctx.Done():
					return
				}
			}
		}(msgs)
	}

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr != nil {
				return amqpErr
			}
			return errors.New("channel closed")
		case d := <-merged:
			if err := c.Handle(d.RoutingKey, d.Body); err != nil {
				c.logger.Error("notification consumer: handle message failed", "queue", d.RoutingKey, "error", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle renders one event and appends it to the notifications log.
func (c *Consumer) Handle(queue string, body []byte) error {
	var line string
	switch queue {
	case RegistrationConfirmedQueue:
		var ev RegistrationConfirmedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = fmt.Sprintf("[%s] Registration confirmed | registration_id=%s | event=%q | name=%q | email=%s | fee=%s\n",
			ev.RegisteredAt, ev.RegistrationID, ev.EventName, ev.FullName, ev.Email, ev.EntryFee)
	case PaymentStatusQueue:
		var ev PaymentStatusEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = fmt.Sprintf("[%s] Payment %s | registration_id=%s | order_id=%s | payment_id=%s | amount=%s %s | email=%s\n",
			ev.OccurredAt, ev.Status, ev.RegistrationID, ev.GatewayOrderID, ev.GatewayPaymentID, ev.Amount, ev.Currency, ev.Email)
	default:
		return fmt.Errorf("unknown queue %q", queue)
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.dir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.dir, "notifications.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
