package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/iliyamo/event-registration/internal/model"
)

// ContactRepo stores messages from the public contact form.
type ContactRepo struct{ db *sql.DB }

func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

func (r *ContactRepo) Create(ctx context.Context, m *model.ContactMessage) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO contact_messages (id, name, email, phone, message, user_agent, ip, created_at) VALUES (?,?,?,?,?,?,?,?)",
		m.ID, m.Name, m.Email, nullable(m.Phone), m.Message, nullable(m.UserAgent), nullable(m.IP), m.CreatedAt)
	return errors.Wrap(err, "insert contact message")
}

// List returns every message, newest first.
func (r *ContactRepo) List(ctx context.Context) ([]model.ContactMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, email, phone, message, user_agent, ip, created_at FROM contact_messages ORDER BY created_at DESC")
	if err != nil {
		return nil, errors.Wrap(err, "list contact messages")
	}
	defer rows.Close()
	out := []model.ContactMessage{}
	for rows.Next() {
		var (
			m                 model.ContactMessage
			phone, ua, ipAddr sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &phone, &m.Message, &ua, &ipAddr, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan contact message")
		}
		m.Phone, m.UserAgent, m.IP = stringPtr(phone), stringPtr(ua), stringPtr(ipAddr)
		out = append(out, m)
	}
	return out, errors.Wrap(rows.Err(), "iterate contact messages")
}
