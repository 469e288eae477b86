// Package idempotency deduplicates retried submissions.  A client supplied
// key maps to the response produced the first time the request succeeded;
// later requests carrying the same key and payload get that response back
// verbatim.  Reusing a live key with a different payload is a conflict.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/iliyamo/event-registration/internal/apperr"
	"github.com/iliyamo/event-registration/internal/model"
)

// Retention windows for cached responses.
const (
	RegistrationTTL = 24 * time.Hour
	OrderTTL        = time.Hour
)

// MaxKeyLength bounds client keys to the width of the key column.
const MaxKeyLength = 255

// Store persists cached responses.  Lookup returns nil for unknown or
// expired keys.  Store gives no mutual exclusion between concurrent
// requests sharing a key; see Locker.
type Store interface {
	Lookup(ctx context.Context, key string, now time.Time) (*model.IdempotencyRecord, error)
	Save(ctx context.Context, rec model.IdempotencyRecord) error
}

// NormalizeKey trims key and rejects keys that cannot be stored.  An empty
// result means the request carries no key.
func NormalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if len(key) > MaxKeyLength {
		return "", apperr.Validation("invalid_idempotency_key", "idempotency key must be at most 255 characters")
	}
	return key, nil
}

// Hash returns the hex SHA-256 of the JSON encoding of v.  Callers pass a
// normalized struct so that field order and whitespace never influence it.
func Hash(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "encode request for hashing")
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Replay looks up key and returns the cached record when one is live.  A
// live record whose hash differs from requestHash yields a conflict.
func Replay(ctx context.Context, s Store, key, requestHash string, now time.Time) (*model.IdempotencyRecord, error) {
	rec, err := s.Lookup(ctx, key, now)
	if err != nil {
		return nil, apperr.Internal("idempotency lookup failed", err)
	}
	if rec == nil || rec.Expired(now) {
		return nil, nil
	}
	if rec.RequestHash != requestHash {
		return nil, apperr.Conflict("idempotency_key_reused", "idempotency key was already used with a different request")
	}
	return rec, nil
}

// NewRecord builds the record cached for a successful response.
func NewRecord(key, requestHash string, status int, body []byte, now time.Time, ttl time.Duration) model.IdempotencyRecord {
	return model.IdempotencyRecord{
		Key:            key,
		RequestHash:    requestHash,
		ResponseStatus: status,
		ResponseBody:   body,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}
}
