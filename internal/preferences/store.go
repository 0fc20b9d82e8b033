package preferences

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists small per-user UI flags.
type Store interface {
	Get(ctx context.Context, userID, key string) (string, bool, error)
	Set(ctx context.Context, userID, key, value string) error
	Delete(ctx context.Context, userID, key string) error
}

// RedisStore keeps each user's flags in one Redis hash.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore constructs a RedisStore. A zero ttl keeps flags forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Get returns the stored value and whether it exists.
func (s *RedisStore) Get(ctx context.Context, userID, key string) (string, bool, error) {
	val, err := s.client.HGet(ctx, redisKey(userID), key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("preferences: get %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores value under key.
func (s *RedisStore) Set(ctx context.Context, userID, key, value string) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, redisKey(userID), key, value)
	if s.ttl > 0 {
		pipe.Expire(ctx, redisKey(userID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("preferences: set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, userID, key string) error {
	if err := s.client.HDel(ctx, redisKey(userID), key).Err(); err != nil {
		return fmt.Errorf("preferences: delete %s: %w", key, err)
	}
	return nil
}

func redisKey(userID string) string {
	return "prefs:" + userID
}

var _ Store = (*RedisStore)(nil)
