package config

// Redis backs the sliding-window rate limiter, the in-flight idempotency lock
// and the public catalog cache.  If the server cannot be reached at startup
// ConnectRedis returns nil and callers degrade: the limiter admits every
// request, order creation runs without the lock and the cache is bypassed.

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoadRedisOptions reads the connection settings:
//
//	REDIS_HOST, REDIS_PORT  server address (both required to take effect)
//	REDIS_ADDR              host:port shorthand, used when HOST/PORT are unset
//	REDIS_PASSWORD          optional password
//	REDIS_DB                database number (default 0)
//	REDIS_TLS               "true" or "1" enables TLS 1.2+
func LoadRedisOptions() *redis.Options {
	addr := envStr("REDIS_ADDR", "localhost:6379")
	if host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); host != "" && port != "" {
		addr = host + ":" + port
	}
	opts := &redis.Options{
		Addr:         addr,
		Password:     envStr("REDIS_PASSWORD", ""),
		DB:           envInt("REDIS_DB", 0),
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
	if t := strings.ToLower(envStr("REDIS_TLS", "")); t == "true" || t == "1" {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// ConnectRedis dials with opts and pings once.  It returns nil when the
// server does not answer.
func ConnectRedis(ctx context.Context, opts *redis.Options) *redis.Client {
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
