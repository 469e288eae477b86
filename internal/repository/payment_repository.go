package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/iliyamo/event-registration/internal/model"
)

// PaymentRepo persists gateway orders and their reconciliation outcome.
// State changes go through single-row conditional updates keyed by the
// unique gateway order id, so concurrent webhook deliveries cannot both win.
type PaymentRepo struct{ db *sql.DB }

func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, registration_id, gateway_order_id, gateway_payment_id, payment_method,
	amount, currency, status, created_at, updated_at, paid_at, failed_at`

// Create inserts a payment row.  Status should be PENDING.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (id, registration_id, gateway_order_id, amount, currency, status, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, p.RegistrationID, p.GatewayOrderID, p.Amount, p.Currency, string(p.Status), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateOrder
		}
		return errors.Wrapf(err, "insert payment for order %s", p.GatewayOrderID)
	}
	return nil
}

// GetByGatewayOrderID returns the payment for a gateway order or
// ErrPaymentNotFound.
func (r *PaymentRepo) GetByGatewayOrderID(ctx context.Context, orderID string) (*model.Payment, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+paymentColumns+" FROM payments WHERE gateway_order_id = ? LIMIT 1", orderID)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "select payment for order %s", orderID)
	}
	return p, nil
}

// TerminalUpdate carries the gateway details recorded with a terminal status.
type TerminalUpdate struct {
	Status           model.PaymentStatus
	GatewayPaymentID string
	PaymentMethod    string
	At               time.Time
}

// MarkTerminal moves a PENDING payment to PAID or FAILED.  It returns false
// when no PENDING row matched, meaning another delivery already finished it.
func (r *PaymentRepo) MarkTerminal(ctx context.Context, orderID string, u TerminalUpdate) (bool, error) {
	var q string
	switch u.Status {
	case model.PaymentPaid:
		q = `UPDATE payments SET status = ?, gateway_payment_id = ?, payment_method = ?, paid_at = ?, updated_at = ?
		     WHERE gateway_order_id = ? AND status = 'PENDING'`
	case model.PaymentFailed:
		q = `UPDATE payments SET status = ?, gateway_payment_id = ?, payment_method = ?, failed_at = ?, updated_at = ?
		     WHERE gateway_order_id = ? AND status = 'PENDING'`
	default:
		return false, errors.Errorf("status %s is not terminal", u.Status)
	}
	res, err := r.db.ExecContext(ctx, q, string(u.Status), nullable(&u.GatewayPaymentID), nullable(&u.PaymentMethod), u.At, u.At, orderID)
	if err != nil {
		return false, errors.Wrapf(err, "update payment for order %s", orderID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n == 1, nil
}

// List returns every payment, newest first.
func (r *PaymentRepo) List(ctx context.Context) ([]model.Payment, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+paymentColumns+" FROM payments ORDER BY created_at DESC")
	if err != nil {
		return nil, errors.Wrap(err, "list payments")
	}
	defer rows.Close()
	out := []model.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan payment")
		}
		out = append(out, *p)
	}
	return out, errors.Wrap(rows.Err(), "iterate payments")
}

func scanPayment(s scanner) (*model.Payment, error) {
	var (
		p                model.Payment
		status           string
		payID, method    sql.NullString
		paidAt, failedAt sql.NullTime
	)
	err := s.Scan(&p.ID, &p.RegistrationID, &p.GatewayOrderID, &payID, &method, &p.Amount, &p.Currency,
		&status, &p.CreatedAt, &p.UpdatedAt, &paidAt, &failedAt)
	if err != nil {
		return nil, err
	}
	p.Status = model.PaymentStatus(status)
	p.GatewayPaymentID = stringPtr(payID)
	p.PaymentMethod = stringPtr(method)
	p.PaidAt = timePtr(paidAt)
	p.FailedAt = timePtr(failedAt)
	return &p, nil
}
