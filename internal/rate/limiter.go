package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces limiter keys.
const DefaultPrefix = "gcr"

// Config holds limiter tuning parameters.
type Config struct {
	// MaxAttempts is the number of failures allowed per window.
	MaxAttempts int
	// Window is the lifetime of a counter, starting at its first failure.
	Window time.Duration
	// Prefix namespaces the Redis keys. Empty means [DefaultPrefix].
	Prefix string
}

// Limiter counts failures per subject in fixed Redis windows.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) (*Limiter, error) {
	if redisClient == nil {
		return nil, errors.New("rate limiter requires a redis client")
	}
	if cfg.MaxAttempts <= 0 {
		return nil, errors.New("rate limiter MaxAttempts must be > 0")
	}
	if cfg.Window <= 0 {
		return nil, errors.New("rate limiter Window must be > 0")
	}
	if strings.TrimSpace(cfg.Prefix) == "" {
		cfg.Prefix = DefaultPrefix
	}
	return &Limiter{redis: redisClient, config: cfg}, nil
}

// Check returns ErrRateLimited once subject has used its failure budget for
// the current window.
func (l *Limiter) Check(ctx context.Context, subject string) error {
	count, err := l.Attempts(ctx, subject)
	if err != nil {
		return err
	}
	if count >= l.config.MaxAttempts {
		return ErrRateLimited
	}
	return nil
}

// Increment records one failure for subject.
func (l *Limiter) Increment(ctx context.Context, subject string) error {
	key := l.key(subject)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return nil
}

// Reset clears the counter for subject.
func (l *Limiter) Reset(ctx context.Context, subject string) error {
	if err := l.redis.Del(ctx, l.key(subject)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the failures recorded for subject in the current window.
func (l *Limiter) Attempts(ctx context.Context, subject string) (int, error) {
	count, err := l.redis.Get(ctx, l.key(subject)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) key(subject string) string {
	return l.config.Prefix + ":" + subject
}
