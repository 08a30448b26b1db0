// Package ratelimit provides the redis-backed per-IP limiter for the public
// intake endpoint. Redis slowness or unavailability must never block intake,
// so every check runs under a short timeout and fails open.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"inkflow_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

type Limiter struct {
	rdb     *redis.Client
	limit   int
	window  time.Duration
	timeout time.Duration
	log     *logger.Logger
}

// New creates the intake limiter. rdb may be nil, in which case every
// request is allowed.
func New(rdb *redis.Client, limit int, window, timeout time.Duration, log *logger.Logger) *Limiter {
	if limit < 1 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	if timeout <= 0 {
		timeout = 800 * time.Millisecond
	}
	return &Limiter{rdb: rdb, limit: limit, window: window, timeout: timeout, log: log}
}

// Allow reports whether the IP may submit. Errors and timeouts allow the
// request through (fail open) after at most the configured timeout.
func (l *Limiter) Allow(ctx context.Context, ip string) bool {
	if l == nil || l.rdb == nil {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	key := fmt.Sprintf("intake:rate:%s", ip)
	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		l.log.Warn("intake rate limiter unavailable, failing open", "error", err)
		return true
	}
	if count == 1 {
		// First hit in the window owns the expiry.
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			l.log.Warn("intake rate limiter expire failed", "error", err)
		}
	}

	if count > int64(l.limit) {
		l.log.RateLimitExceeded(ip, "/public/leads")
		return false
	}
	return true
}
