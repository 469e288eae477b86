package idempotency

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serializes requests sharing an idempotency key while the first one
// is in flight.  Acquire reports false when another holder owns the key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// releaseLua deletes the lock only if it still carries our token.
var releaseLua = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX.  With a nil client every
// Acquire succeeds and nothing is locked.
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb, prefix: "idem_lock"}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if l.rdb == nil {
		return func() {}, true, nil
	}
	lockKey := l.prefix + ":" + key
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		slog.WarnContext(ctx, "idempotency lock unavailable, continuing without it", "key", key, "error", err)
		return func() {}, true, nil
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseLua.Run(rctx, l.rdb, []string{lockKey}, token).Err(); err != nil {
			slog.Warn("idempotency lock release failed", "key", key, "error", err)
		}
	}
	return release, true, nil
}
