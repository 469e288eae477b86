package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is shared by registrations and payments.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

// Terminal reports whether no further webhook may change the status.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentPaid || s == PaymentFailed
}

// Registration records one participant's sign-up for an event.  EntryFee is
// stamped from the catalog at submission time and PaymentStatus is the only
// field changed afterwards (by webhook reconciliation).  At most one
// registration exists per (EventName, Email).
type Registration struct {
	ID            string          `json:"id"`
	EventName     string          `json:"eventName"`
	EntryFee      decimal.Decimal `json:"entryFee"`
	FullName      string          `json:"fullName"`
	Email         string          `json:"email"`
	Phone         string          `json:"phone"`
	College       string          `json:"college"`
	Year          string          `json:"year"`
	Branch        string          `json:"branch"`
	TransactionID *string         `json:"transactionId,omitempty"`
	UserAgent     *string         `json:"userAgent,omitempty"`
	IP            *string         `json:"ip,omitempty"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	CreatedAt     time.Time       `json:"createdAt"`
}
