package limiters

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRecoveryRateLimited      = errors.New("recovery rate limited")
	ErrRecoveryRedisUnavailable = errors.New("recovery redis unavailable")
)

type RecoveryConfig struct {
	EnableEmailThrottle bool
	EnableIPThrottle    bool
	MaxAttempts         int
	Window              time.Duration
	Prefix              string
}

// RecoveryLimiter throttles forgot-password requests per email and per client
// IP, and reset confirmations per client IP.
type RecoveryLimiter struct {
	redis  redis.UniversalClient
	config RecoveryConfig
}

func NewRecoveryLimiter(redisClient redis.UniversalClient, cfg RecoveryConfig) *RecoveryLimiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "gcr"
	}
	return &RecoveryLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckRequest runs before the email lookup so that throttling behaves the
// same for registered and unknown addresses.
func (l *RecoveryLimiter) CheckRequest(ctx context.Context, email, ip string) error {
	if l == nil || l.redis == nil {
		return nil
	}
	if l.config.EnableEmailThrottle && email != "" {
		if err := l.enforce(ctx, l.config.Prefix+":rq:e:"+strings.ToLower(email)); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforce(ctx, l.config.Prefix+":rq:ip:"+ip); err != nil {
			return err
		}
	}
	return nil
}

func (l *RecoveryLimiter) CheckConfirm(ctx context.Context, ip string) error {
	if l == nil || l.redis == nil {
		return nil
	}
	if l.config.EnableIPThrottle && ip != "" {
		return l.enforce(ctx, l.config.Prefix+":rc:ip:"+ip)
	}
	return nil
}

func (l *RecoveryLimiter) enforce(ctx context.Context, key string) error {
	count, err := incrWindow(ctx, l.redis, key, l.config.Window, ErrRecoveryRedisUnavailable)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxAttempts) {
		return ErrRecoveryRateLimited
	}
	return nil
}
