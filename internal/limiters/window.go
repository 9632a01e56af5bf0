package limiters

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWindow bumps key and starts its window on the first hit. It returns the
// count after the increment. Backend failures wrap unavailable.
func incrWindow(ctx context.Context, rdb redis.UniversalClient, key string, window time.Duration, unavailable error) (int64, error) {
	count, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", unavailable, err)
	}

	if count == 1 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", unavailable, err)
		}
	}

	return count, nil
}
