package model

import "time"

// IdempotencyRecord caches the response produced by the first successful
// handling of an idempotency key.  Records are never updated while live; a
// fresh record may replace one only after ExpiresAt.
type IdempotencyRecord struct {
	Key            string
	RequestHash    string
	ResponseStatus int
	ResponseBody   []byte
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// Expired reports whether the record is past its TTL at now.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
