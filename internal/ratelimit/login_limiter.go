package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited means the username has used up its failed login budget.
	ErrRateLimited = errors.New("too many failed login attempts")
	// ErrRedisUnavailable wraps any redis failure.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

const loginKeyPrefix = "auth:login:fail:"

// LoginLimiter counts failed logins per username in a fixed window.
type LoginLimiter struct {
	redis       redis.UniversalClient
	maxAttempts int
	cooldown    time.Duration
}

// NewLoginLimiter builds a limiter. A non-positive maxAttempts disables it.
func NewLoginLimiter(client redis.UniversalClient, maxAttempts int, cooldown time.Duration) *LoginLimiter {
	return &LoginLimiter{redis: client, maxAttempts: maxAttempts, cooldown: cooldown}
}

func (l *LoginLimiter) enabled() bool {
	return l != nil && l.redis != nil && l.maxAttempts > 0
}

// Check fails with ErrRateLimited once the username has reached its budget.
func (l *LoginLimiter) Check(ctx context.Context, username string) error {
	if !l.enabled() {
		return nil
	}
	count, err := l.redis.Get(ctx, loginKey(username)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(l.maxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// RecordFailure bumps the failure counter, starting the cooldown window on
// the first failure.
func (l *LoginLimiter) RecordFailure(ctx context.Context, username string) (int64, error) {
	if !l.enabled() {
		return 0, nil
	}
	key := loginKey(username)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.cooldown).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}

// Reset clears the counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, username string) error {
	if !l.enabled() {
		return nil
	}
	if err := l.redis.Del(ctx, loginKey(username)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func loginKey(username string) string {
	return loginKeyPrefix + strings.ToLower(username)
}
