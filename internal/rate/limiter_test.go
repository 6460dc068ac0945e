package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, max int) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l, err := New(client, Config{MaxAttempts: max, Window: time.Minute})
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	return l, mr
}

func TestLimiterBlocksAfterBudget(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, 2)

	for i := 0; i < 2; i++ {
		if err := l.Check(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if err := l.Increment(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}
	if err := l.Check(ctx, "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.Check(ctx, "10.0.0.2"); err != nil {
		t.Fatalf("other subject must be unaffected: %v", err)
	}

	if err := l.Reset(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n, _ := l.Attempts(ctx, "10.0.0.1"); n != 0 {
		t.Fatalf("expected 0 attempts after reset, got %d", n)
	}
}

func TestLimiterWindowExpires(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLimiter(t, 1)

	if err := l.Increment(ctx, "ops"); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if ttl := mr.TTL(DefaultPrefix + ":ops"); ttl != time.Minute {
		t.Fatalf("expected 1m ttl, got %s", ttl)
	}
	if err := l.Check(ctx, "ops"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := l.Check(ctx, "ops"); err != nil {
		t.Fatalf("expected window to reset, got %v", err)
	}
}

func TestLimiterRedisUnavailable(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLimiter(t, 1)
	mr.Close()

	if err := l.Increment(ctx, "ops"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if err := l.Check(ctx, "ops"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	if _, err := New(nil, Config{MaxAttempts: 1, Window: time.Second}); err == nil {
		t.Fatal("expected error for nil client")
	}
	if _, err := New(client, Config{Window: time.Second}); err == nil {
		t.Fatal("expected error for zero MaxAttempts")
	}
	if _, err := New(client, Config{MaxAttempts: 1}); err == nil {
		t.Fatal("expected error for zero Window")
	}
}
