package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/iliyamo/event-registration/internal/model"
)

// RegistrationRepo persists event registrations.  The (event_name, email)
// unique key enforces one registration per participant per event.
type RegistrationRepo struct{ db *sql.DB }

func NewRegistrationRepo(db *sql.DB) *RegistrationRepo { return &RegistrationRepo{db: db} }

const registrationColumns = `id, event_name, entry_fee, full_name, email, phone, college, year, branch,
	transaction_id, user_agent, ip, payment_status, created_at`

// Create inserts a registration.  A uniqueness violation is reported as
// ErrDuplicateRegistration.
func (r *RegistrationRepo) Create(ctx context.Context, reg *model.Registration) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO registrations (`+registrationColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		reg.ID, reg.EventName, reg.EntryFee, reg.FullName, reg.Email, reg.Phone, reg.College,
		reg.Year, reg.Branch, nullable(reg.TransactionID), nullable(reg.UserAgent), nullable(reg.IP),
		string(reg.PaymentStatus), reg.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateRegistration
		}
		return errors.Wrap(err, "insert registration")
	}
	return nil
}

// GetByID returns a registration or ErrRegistrationNotFound.
func (r *RegistrationRepo) GetByID(ctx context.Context, id string) (*model.Registration, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+registrationColumns+" FROM registrations WHERE id = ? LIMIT 1", id)
	reg, err := scanRegistration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRegistrationNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "select registration %s", id)
	}
	return reg, nil
}

// UpdatePaymentStatus mirrors a payment outcome onto the registration.  A
// registration can carry several orders over time, so once one of them is
// captured the registration stays PAID.  It reports false when no row
// changed: already PAID, same status, or unknown id.
func (r *RegistrationRepo) UpdatePaymentStatus(ctx context.Context, id string, status model.PaymentStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE registrations SET payment_status = ? WHERE id = ? AND payment_status <> ?",
		string(status), id, string(model.PaymentPaid))
	if err != nil {
		return false, errors.Wrapf(err, "update registration %s payment status", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrapf(err, "update registration %s payment status", id)
	}
	return n > 0, nil
}

// List returns every registration, newest first.
func (r *RegistrationRepo) List(ctx context.Context) ([]model.Registration, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+registrationColumns+" FROM registrations ORDER BY created_at DESC")
	if err != nil {
		return nil, errors.Wrap(err, "list registrations")
	}
	defer rows.Close()
	out := []model.Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan registration")
		}
		out = append(out, *reg)
	}
	return out, errors.Wrap(rows.Err(), "iterate registrations")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRegistration(s scanner) (*model.Registration, error) {
	var (
		reg                     model.Registration
		status                  string
		txID, userAgent, ipAddr sql.NullString
	)
	err := s.Scan(&reg.ID, &reg.EventName, &reg.EntryFee, &reg.FullName, &reg.Email, &reg.Phone,
		&reg.College, &reg.Year, &reg.Branch, &txID, &userAgent, &ipAddr, &status, &reg.CreatedAt)
	if err != nil {
		return nil, err
	}
	reg.PaymentStatus = model.PaymentStatus(status)
	reg.TransactionID = stringPtr(txID)
	reg.UserAgent = stringPtr(userAgent)
	reg.IP = stringPtr(ipAddr)
	return &reg, nil
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
