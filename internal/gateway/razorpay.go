// Package gateway talks to the Razorpay-compatible payment provider: order
// creation over its REST API and verification of webhook signatures.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/pkg/errors"

	"github.com/iliyamo/event-registration/internal/config"
)

const defaultTimeout = 10 * time.Second

var (
	orderSuccessCounter  = metrics.GetOrCreateCounter(`gateway_orders_total{result="success"}`)
	orderRejectedCounter = metrics.GetOrCreateCounter(`gateway_orders_total{result="rejected"}`)
	orderErrorCounter    = metrics.GetOrCreateCounter(`gateway_orders_total{result="transport_error"}`)
	orderDuration        = metrics.GetOrCreateHistogram(`gateway_order_duration_milliseconds`)
)

// OrderRequest is the body of POST /v1/orders.  Amount is in minor units.
type OrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// Order is the subset of the provider's order entity we rely on.
type Order struct {
	ID       string      `json:"id"`
	Entity   string      `json:"entity"`
	Amount   json.Number `json:"amount"`
	Currency string      `json:"currency"`
	Receipt  string      `json:"receipt"`
	Status   string      `json:"status"`
}

// APIError is a non-2xx reply from the provider.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("razorpay: %d %s: %s", e.StatusCode, e.Code, e.Description)
}

// Client is a minimal Razorpay REST client authenticated with HTTP basic
// auth (key id and key secret).
type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
	logger    *slog.Logger
}

func NewClient(cfg config.PaymentConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		http:      &http.Client{Timeout: defaultTimeout},
		logger:    logger,
	}
}

// KeyID is the public key handed to the checkout widget.
func (c *Client) KeyID() string { return c.keyID }

// CreateOrder registers a new order with the provider.
func (c *Client) CreateOrder(ctx context.Context, in OrderRequest) (*Order, error) {
	start := time.Now()
	defer func() { orderDuration.UpdateDuration(start) }()

	payload, err := json.Marshal(in)
	if err != nil {
		return nil, errors.Wrap(err, "encode order request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build order request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.http.Do(req)
	if err != nil {
		orderErrorCounter.Inc()
		return nil, errors.Wrap(err, "send order request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		orderErrorCounter.Inc()
		return nil, errors.Wrap(err, "read order response")
	}

	if resp.StatusCode >= 300 {
		orderRejectedCounter.Inc()
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Description = envelope.Error.Description
		}
		c.logger.ErrorContext(ctx, "razorpay order rejected",
			"status", resp.StatusCode, "code", apiErr.Code, "description", apiErr.Description, "receipt", in.Receipt)
		return nil, apiErr
	}

	var order Order
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&order); err != nil {
		orderErrorCounter.Inc()
		return nil, errors.Wrap(err, "decode order response")
	}
	if order.ID == "" {
		orderErrorCounter.Inc()
		return nil, errors.New("order response has no id")
	}
	orderSuccessCounter.Inc()
	c.logger.InfoContext(ctx, "razorpay order created", "order_id", order.ID, "amount", in.Amount, "receipt", in.Receipt)
	return &order, nil
}
