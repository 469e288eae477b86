package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/iliyamo/event-registration/internal/model"
)

// EventRepo reads the event catalog.  It never writes.
type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = "id, name, entry_fee, is_active, created_at, updated_at"

// GetActiveByName returns the active event with the given name or
// ErrEventNotFound.
func (r *EventRepo) GetActiveByName(ctx context.Context, name string) (*model.Event, error) {
	var ev model.Event
	err := r.db.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE name = ? AND is_active = 1 LIMIT 1", name).
		Scan(&ev.ID, &ev.Name, &ev.EntryFee, &ev.IsActive, &ev.CreatedAt, &ev.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "select event %q", name)
	}
	return &ev, nil
}

// ListActive returns all active events ordered by name.
func (r *EventRepo) ListActive(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE is_active = 1 ORDER BY name")
	if err != nil {
		return nil, errors.Wrap(err, "list events")
	}
	defer rows.Close()
	out := []model.Event{}
	for rows.Next() {
		var ev model.Event
		if err := rows.Scan(&ev.ID, &ev.Name, &ev.EntryFee, &ev.IsActive, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		out = append(out, ev)
	}
	return out, errors.Wrap(rows.Err(), "iterate events")
}
