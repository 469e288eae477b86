// Package ratelimit implements sliding-window admission control backed by
// Redis.  Each admitted request is recorded as a member of a sorted set
// scored by its arrival time; the window is the set of members younger than
// the class window.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-registration/internal/config"
)

var (
	admittedCounter = metrics.GetOrCreateCounter(`ratelimit_decisions_total{result="admitted"}`)
	deniedCounter   = metrics.GetOrCreateCounter(`ratelimit_decisions_total{result="denied"}`)
	failOpenCounter = metrics.GetOrCreateCounter(`ratelimit_decisions_total{result="fail_open"}`)
)

// slidingWindow evicts expired members, then records the request only if
// the window still has room.  Returns {allowed, count, oldest_ms}.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now_ms - window_ms)

local allowed = 1
local count = redis.call('ZCARD', key)
if count >= limit then
  allowed = 0
else
  redis.call('ZADD', key, now_ms, member)
  count = count + 1
end
redis.call('PEXPIRE', key, window_ms)

local oldest_ms = now_ms
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  oldest_ms = tonumber(oldest[2])
end
return { allowed, count, oldest_ms }
`)

// Decision is the outcome of one admission check.  Degraded is set when the
// limiter could not consult Redis and admitted the request unchecked.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
	Degraded   bool
}

// Limiter admits or rejects requests per endpoint class.
type Limiter struct {
	rdb    *redis.Client
	cfg    config.RateLimitConfig
	logger *slog.Logger
	now    func() time.Time
}

// New returns a limiter.  A nil client or a disabled config yields a limiter
// that admits everything.
func New(rdb *redis.Client, cfg config.RateLimitConfig, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{rdb: rdb, cfg: cfg, logger: logger, now: time.Now}
}

// Identity builds the identity a class is keyed on.
func Identity(strategy, ip, userID string) string {
	if ip == "" {
		ip = "unknown"
	}
	if strategy == config.StrategyIPUser {
		if userID == "" {
			userID = "anon"
		}
		return "user:" + userID + ":" + ip
	}
	return ip
}

// Key is the Redis key holding the window of identity under class.
func (l *Limiter) Key(class, identity string) string {
	return l.cfg.Prefix + ":" + class + ":" + identity
}

// Class exposes the policy the limiter applies to name.
func (l *Limiter) Class(name string) config.RateClass {
	return l.cfg.Class(name)
}

// Admit records one request of identity against class.  Redis failures
// are logged and the request is admitted.
func (l *Limiter) Admit(ctx context.Context, identity, class string) Decision {
	rc := l.cfg.Class(class)
	if !l.cfg.Enabled || l.rdb == nil {
		return Decision{Allowed: true, Limit: rc.Requests, Remaining: rc.Requests, Degraded: true}
	}

	now := l.now()
	key := l.Key(rc.Name, identity)
	vals, err := slidingWindow.Run(ctx, l.rdb, []string{key},
		now.UnixMilli(), rc.Window.Milliseconds(), rc.Requests, uuid.NewString()).Result()
	if err != nil {
		return l.failOpen(ctx, rc, key, err)
	}
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 3 {
		return l.failOpen(ctx, rc, key, fmt.Errorf("unexpected script result %#v", vals))
	}

	allowed := asInt64(arr[0]) == 1
	count := int(asInt64(arr[1]))
	oldest := time.UnixMilli(asInt64(arr[2]))

	d := Decision{
		Allowed:   allowed,
		Limit:     rc.Requests,
		Remaining: max(rc.Requests-count, 0),
		Reset:     oldest.Add(rc.Window),
	}
	if !allowed {
		d.RetryAfter = rc.Window
		deniedCounter.Inc()
		l.logger.InfoContext(ctx, "rate limit exceeded", "key", key, "limit", rc.Requests, "window", rc.Window.String())
		return d
	}
	admittedCounter.Inc()
	return d
}

func (l *Limiter) failOpen(ctx context.Context, rc config.RateClass, key string, err error) Decision {
	failOpenCounter.Inc()
	l.logger.WarnContext(ctx, "rate limiter unavailable, admitting request", "key", key, "error", err)
	return Decision{Allowed: true, Limit: rc.Requests, Remaining: rc.Requests, Degraded: true}
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
