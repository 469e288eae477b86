package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment tracks one gateway order for a registration.  A registration may
// accumulate several payments across retries but each GatewayOrderID is
// unique.  Rows are created PENDING and moved to PAID or FAILED exactly once.
type Payment struct {
	ID               string          `json:"id"`
	RegistrationID   string          `json:"registrationId"`
	GatewayOrderID   string          `json:"gatewayOrderId"`
	GatewayPaymentID *string         `json:"gatewayPaymentId,omitempty"`
	PaymentMethod    *string         `json:"paymentMethod,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Status           PaymentStatus   `json:"status"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	PaidAt           *time.Time      `json:"paidAt,omitempty"`
	FailedAt         *time.Time      `json:"failedAt,omitempty"`
}
