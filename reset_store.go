package goCred

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goCred/internal/stores"
	"github.com/redis/go-redis/v9"
)

// redisResetStore adapts the Redis reset token store to ResetTokenStore.
// It is the default when the Builder has a Redis client and no explicit store.
type redisResetStore struct {
	store     *stores.ResetTokenStore
	retention time.Duration
	now       func() time.Time
}

func newRedisResetStore(redisClient redis.UniversalClient, cfg RecoveryConfig, now func() time.Time) *redisResetStore {
	return &redisResetStore{
		store:     stores.NewResetTokenStore(redisClient, cfg.RedisPrefix),
		retention: cfg.ExpiredRetention,
		now:       now,
	}
}

// SaveResetToken keeps the record until ExpiresAt plus the retention window,
// so an expired token is still recognized as expired rather than unknown.
func (s *redisResetStore) SaveResetToken(ctx context.Context, token ResetToken) error {
	ttl := token.ExpiresAt.Sub(s.now()) + s.retention
	if ttl <= 0 {
		return nil
	}
	err := s.store.Save(ctx, token.Key, &stores.ResetRecord{
		UserID:    token.UserID,
		CreatedAt: token.CreatedAt.Unix(),
		ExpiresAt: token.ExpiresAt.Unix(),
	}, ttl)
	return mapResetStoreError(err)
}

func (s *redisResetStore) ConsumeResetToken(ctx context.Context, key string) (ResetToken, error) {
	record, err := s.store.Consume(ctx, key)
	if err != nil {
		return ResetToken{}, mapResetStoreError(err)
	}
	return ResetToken{
		Key:       key,
		UserID:    record.UserID,
		CreatedAt: time.Unix(record.CreatedAt, 0),
		ExpiresAt: time.Unix(record.ExpiresAt, 0),
	}, nil
}

func (s *redisResetStore) DeleteResetTokensForUser(ctx context.Context, userID string) error {
	return mapResetStoreError(s.store.DeleteForUser(ctx, userID))
}

func mapResetStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stores.ErrResetNotFound):
		return ErrResetTokenInvalid
	case errors.Is(err, stores.ErrResetRedisUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}
