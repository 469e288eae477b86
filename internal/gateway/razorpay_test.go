package gateway

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-registration/internal/config"
)

func testClient() *Client {
	return NewClient(config.PaymentConfig{
		KeyID:     "rzp_test_key",
		KeySecret: "rzp_test_secret",
		BaseURL:   "https://api.razorpay.test/",
		Currency:  "INR",
	}, nil)
}

func TestClient_CreateOrder(t *testing.T) {
	req := OrderRequest{
		Amount:   5000,
		Currency: "INR",
		Receipt:  "reg_0b8f7e2c",
		Notes:    map[string]string{"registration_id": "0b8f7e2c-7c59-4a4e-9d38-0e3a4f1c2b11", "event_name": "Tech Quiz", "email": "asha@example.com"},
	}

	tests := []struct {
		name         string
		mockResponse func()
		wantOrderID  string
		wantAPIError bool
		wantErr      bool
	}{
		{
			name: "Success",
			mockResponse: func() {
				gock.New("https://api.razorpay.test").
					Post("/v1/orders").
					BasicAuth("rzp_test_key", "rzp_test_secret").
					MatchType("json").
					JSON(map[string]any{
						"amount":   5000,
						"currency": "INR",
						"receipt":  "reg_0b8f7e2c",
						"notes":    req.Notes,
					}).
					Reply(200).
					JSON(map[string]any{"id": "order_Tq1", "entity": "order", "amount": 5000, "currency": "INR", "status": "created"})
			},
			wantOrderID: "order_Tq1",
		},
		{
			name: "Rejected",
			mockResponse: func() {
				gock.New("https://api.razorpay.test").
					Post("/v1/orders").
					Reply(400).
					JSON(map[string]any{"error": map[string]string{"code": "BAD_REQUEST_ERROR", "description": "amount too small"}})
			},
			wantErr:      true,
			wantAPIError: true,
		},
		{
			name: "MissingID",
			mockResponse: func() {
				gock.New("https://api.razorpay.test").
					Post("/v1/orders").
					Reply(200).
					JSON(map[string]any{"entity": "order"})
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gock.Off()
			tt.mockResponse()

			order, err := testClient().CreateOrder(context.Background(), req)
			if tt.wantErr {
				require.Error(t, err)
				var apiErr *APIError
				assert.Equal(t, tt.wantAPIError, errors.As(err, &apiErr))
				if tt.wantAPIError {
					assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
					assert.Equal(t, "BAD_REQUEST_ERROR", apiErr.Code)
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantOrderID, order.ID)
				assert.Equal(t, "5000", order.Amount.String())
			}
			assert.True(t, gock.IsDone())
		})
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"payment.captured"}`)
	sig := Sign(body, "whsec")

	assert.True(t, VerifySignature(body, sig, "whsec"))
	assert.False(t, VerifySignature(body, sig, "other"))
	assert.False(t, VerifySignature([]byte(`{"event":"payment.failed"}`), sig, "whsec"))
	assert.False(t, VerifySignature(body, "not-hex", "whsec"))
	assert.False(t, VerifySignature(body, "", "whsec"))
	assert.False(t, VerifySignature(body, sig, ""))
}
