package ratewindow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "rate_window:"

// RedisStore keeps each key's window in a Redis sorted set scored by event
// time, so multiple instances share one accounting table.
type RedisStore struct {
	redis  *redis.Client
	window time.Duration
}

// NewRedisStore creates a Redis-backed store for the given window. Returns
// nil when the client is nil so callers can fall back to memory.
func NewRedisStore(redisClient *redis.Client, window time.Duration) *RedisStore {
	if redisClient == nil {
		return nil
	}
	return &RedisStore{
		redis:  redisClient,
		window: window,
	}
}

// Record prunes entries older than the window, appends the event and returns
// the resulting cardinality in one transaction.
func (s *RedisStore) Record(ctx context.Context, key string, now time.Time) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	redisKey := redisKeyPrefix + key
	cutoff := strconv.FormatInt(now.Add(-s.window).UnixNano(), 10)

	pipe := s.redis.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", cutoff)
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.NewString(),
	})
	card := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, s.window+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("ratewindow: record event for %s: %w", key, err)
	}
	return int(card.Val()), nil
}

// Reset drops all recorded events for a key.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.redis.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("ratewindow: reset %s: %w", key, err)
	}
	return nil
}
