package limiters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrLoginRateLimited      = errors.New("login rate limited")
	ErrLoginRedisUnavailable = errors.New("login redis unavailable")
)

type LoginConfig struct {
	Enabled     bool
	MaxAttempts int
	Window      time.Duration
	Prefix      string
}

// LoginLimiter counts failed logins per username in a fixed window. Only
// failures are counted; a successful login clears the counter.
type LoginLimiter struct {
	redis  redis.UniversalClient
	config LoginConfig
}

func NewLoginLimiter(redisClient redis.UniversalClient, cfg LoginConfig) *LoginLimiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "gcr"
	}
	return &LoginLimiter{redis: redisClient, config: cfg}
}

func (l *LoginLimiter) key(username string) string {
	return l.config.Prefix + ":lf:" + strings.ToLower(username)
}

func (l *LoginLimiter) active() bool {
	return l != nil && l.redis != nil && l.config.Enabled
}

// Check returns ErrLoginRateLimited once the failure budget for username is spent.
func (l *LoginLimiter) Check(ctx context.Context, username string) error {
	if !l.active() || username == "" {
		return nil
	}

	count, err := l.redis.Get(ctx, l.key(username)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrLoginRedisUnavailable, err)
	}
	if count >= int64(l.config.MaxAttempts) {
		return ErrLoginRateLimited
	}
	return nil
}

// RecordFailure increments the failure counter for username.
func (l *LoginLimiter) RecordFailure(ctx context.Context, username string) error {
	if !l.active() || username == "" {
		return nil
	}
	_, err := incrWindow(ctx, l.redis, l.key(username), l.config.Window, ErrLoginRedisUnavailable)
	return err
}

// Reset clears the failure counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, username string) error {
	if !l.active() || username == "" {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(username)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginRedisUnavailable, err)
	}
	return nil
}
