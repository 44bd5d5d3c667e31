// Package ratelimit implements fixed-window counters over Redis. A window is
// identified by (client key, action, bucket start); the increment and the
// threshold comparison happen on a single counter so concurrent callers can
// never all read a value under the limit and all proceed.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Counters is the slice of Redis the limiter needs. *redis.Client satisfies
// it; tests substitute an in-memory fake.
type Counters interface {
	Incr(ctx context.Context, key string) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// Limiter enforces a per-bucket threshold for (clientKey, action) pairs.
type Limiter struct {
	counters  Counters
	logger    *zap.Logger
	threshold int
	window    time.Duration
	prefix    string
	now       func() time.Time
}

// Config holds limiter settings.
type Config struct {
	// Threshold is the number of allowed calls per bucket.
	Threshold int
	// Window is the fixed bucket width.
	Window time.Duration
	// KeyPrefix namespaces counter keys in Redis.
	KeyPrefix string
}

// New builds a limiter over the given counter store.
func New(counters Counters, cfg Config, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "ratelimit"
	}
	return &Limiter{
		counters:  counters,
		logger:    logger,
		threshold: cfg.Threshold,
		window:    cfg.Window,
		prefix:    cfg.KeyPrefix,
		now:       time.Now,
	}
}

// Allow consumes one slot in the current bucket and reports whether the call
// is within the threshold. The counter is incremented first and compared
// after, so exactly `threshold` calls per bucket ever see true.
func (l *Limiter) Allow(ctx context.Context, clientKey, action string) (bool, error) {
	return l.AllowN(ctx, clientKey, action, l.threshold)
}

// AllowN is Allow with a per-call threshold override, used when a tenant
// configures its own limit.
func (l *Limiter) AllowN(ctx context.Context, clientKey, action string, threshold int) (bool, error) {
	if threshold <= 0 {
		threshold = l.threshold
	}
	key := l.key(clientKey, action, l.now())

	count, err := l.counters.Incr(ctx, key)
	if err != nil {
		return false, fmt.Errorf("ratelimit: incr: %w", err)
	}
	if count == 1 {
		// Past buckets are inert; the TTL just keeps dead keys from piling
		// up. Twice the window leaves room for clock skew across callers.
		if err := l.counters.Expire(ctx, key, 2*l.window); err != nil {
			l.logger.Warn("failed to set rate limit key TTL",
				zap.String("key", key), zap.Error(err))
		}
	}

	return count <= int64(threshold), nil
}

// Remaining reports how many calls are left in the current bucket without
// consuming one.
func (l *Limiter) Remaining(ctx context.Context, clientKey, action string) (int, error) {
	key := l.key(clientKey, action, l.now())

	count, err := l.counters.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("ratelimit: get: %w", err)
	}

	remaining := l.threshold - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Window returns the bucket width.
func (l *Limiter) Window() time.Duration {
	return l.window
}

func (l *Limiter) key(clientKey, action string, now time.Time) string {
	bucket := now.Truncate(l.window).Unix()
	return fmt.Sprintf("%s:%s:%s:%d", l.prefix, action, clientKey, bucket)
}

// RedisCounters adapts *redis.Client to the Counters interface.
type RedisCounters struct {
	Client *redis.Client
}

func (r RedisCounters) Incr(ctx context.Context, key string) (int64, error) {
	return r.Client.Incr(ctx, key).Result()
}

func (r RedisCounters) Get(ctx context.Context, key string) (int64, error) {
	n, err := r.Client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

func (r RedisCounters) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.Client.Expire(ctx, key, ttl).Err()
}
