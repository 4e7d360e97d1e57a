// Package ratelimit implements a fixed-window request limiter backed by
// Redis, used to slow down credential guessing on the auth endpoints.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/securevault/internal/common"
)

// Window is the length of one counting window.
const Window = time.Minute

// Store is the subset of the Redis API the limiter needs.
type Store interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// Limiter counts requests per key within fixed one-minute windows. When the
// backing store is unreachable the limiter fails open.
type Limiter struct {
	store Store
}

// NewLimiter constructs a Limiter over the given store.
func NewLimiter(store Store) *Limiter {
	return &Limiter{store: store}
}

// Allow records one hit for the key and reports whether it is still within
// the limit. Returns common.ErrorTooManyRequests once the window's counter
// exceeds limit.
func (l *Limiter) Allow(ctx context.Context, scope, key string, limit int) error {
	if limit <= 0 {
		return nil
	}
	window := time.Now().Unix() / int64(Window.Seconds())
	redisKey := fmt.Sprintf("ratelimit:%s:%s:%d", scope, key, window)

	count, err := l.store.Incr(ctx, redisKey).Result()
	if err != nil {
		return nil
	}
	if count == 1 {
		l.store.Expire(ctx, redisKey, Window)
	}
	if count > int64(limit) {
		return common.ErrorTooManyRequests
	}
	return nil
}
