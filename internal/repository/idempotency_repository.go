package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/iliyamo/event-registration/internal/model"
)

// IdempotencyRepo stores cached responses keyed by idempotency key.
type IdempotencyRepo struct{ db *sql.DB }

func NewIdempotencyRepo(db *sql.DB) *IdempotencyRepo { return &IdempotencyRepo{db: db} }

// Lookup returns the live record for key, or nil when the key is unknown or
// its record has expired at now.
func (r *IdempotencyRepo) Lookup(ctx context.Context, key string, now time.Time) (*model.IdempotencyRecord, error) {
	var rec model.IdempotencyRecord
	err := r.db.QueryRowContext(ctx,
		`SELECT idempotency_key, request_hash, response_status, response_body, created_at, expires_at
		 FROM idempotency_keys WHERE idempotency_key = ? AND expires_at > ? LIMIT 1`, key, now).
		Scan(&rec.Key, &rec.RequestHash, &rec.ResponseStatus, &rec.ResponseBody, &rec.CreatedAt, &rec.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "select idempotency key %q", key)
	}
	return &rec, nil
}

// Save inserts rec.  If a row already exists for the key it is replaced only
// when that row has expired; a live row is left untouched.
func (r *IdempotencyRepo) Save(ctx context.Context, rec model.IdempotencyRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO idempotency_keys (idempotency_key, request_hash, response_status, response_body, created_at, expires_at)
		 VALUES (?,?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE
		   request_hash    = IF(expires_at <= VALUES(created_at), VALUES(request_hash), request_hash),
		   response_status = IF(expires_at <= VALUES(created_at), VALUES(response_status), response_status),
		   response_body   = IF(expires_at <= VALUES(created_at), VALUES(response_body), response_body),
		   created_at      = IF(expires_at <= VALUES(created_at), VALUES(created_at), created_at),
		   expires_at      = IF(expires_at <= VALUES(created_at), VALUES(expires_at), expires_at)`,
		rec.Key, rec.RequestHash, rec.ResponseStatus, rec.ResponseBody, rec.CreatedAt, rec.ExpiresAt)
	return errors.Wrapf(err, "save idempotency key %q", rec.Key)
}
