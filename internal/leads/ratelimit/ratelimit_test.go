package ratelimit

import (
	"context"
	"testing"
	"time"

	"inkflow_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, limit, window, time.Second, logger.New("test")), mr
}

func TestAllow_UnderLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		if !limiter.Allow(context.Background(), "10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
}

func TestAllow_BlocksOverLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2, time.Minute)

	limiter.Allow(context.Background(), "10.0.0.1")
	limiter.Allow(context.Background(), "10.0.0.1")

	if limiter.Allow(context.Background(), "10.0.0.1") {
		t.Fatal("third request should be blocked")
	}
}

func TestAllow_PerIPBuckets(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)

	if !limiter.Allow(context.Background(), "10.0.0.1") {
		t.Fatal("first ip should be allowed")
	}
	if !limiter.Allow(context.Background(), "10.0.0.2") {
		t.Fatal("second ip has its own bucket")
	}
	if limiter.Allow(context.Background(), "10.0.0.1") {
		t.Fatal("first ip is over its limit")
	}
}

func TestAllow_WindowExpires(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1, time.Minute)

	limiter.Allow(context.Background(), "10.0.0.1")
	if limiter.Allow(context.Background(), "10.0.0.1") {
		t.Fatal("second request within the window should be blocked")
	}

	mr.FastForward(2 * time.Minute)

	if !limiter.Allow(context.Background(), "10.0.0.1") {
		t.Fatal("request after the window should be allowed again")
	}
}

func TestAllow_FailsOpenWhenRedisDown(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1, time.Minute)
	mr.Close()

	if !limiter.Allow(context.Background(), "10.0.0.1") {
		t.Fatal("limiter must fail open when redis is unreachable")
	}
}

func TestAllow_NilClientAllowsAll(t *testing.T) {
	limiter := New(nil, 1, time.Minute, time.Second, logger.New("test"))

	for i := 0; i < 5; i++ {
		if !limiter.Allow(context.Background(), "10.0.0.1") {
			t.Fatal("nil-backed limiter must allow everything")
		}
	}
}
