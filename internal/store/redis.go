package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists options as plain Redis string keys. Keys are namespaced
// so registry data does not collide with other users of the same instance.
type RedisStore struct {
	client *redis.Client
}

const redisKeyPrefix = "options:"

// NewRedisStore creates a RedisStore backed by the given client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns the value stored under key, with found=false when the key is
// absent.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get option %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key with no expiration.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, redisKeyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("set option %s: %w", key, err)
	}
	return nil
}

// Declare reserves key's slot if it is absent.
func (s *RedisStore) Declare(ctx context.Context, key string) error {
	if err := s.client.SetNX(ctx, redisKeyPrefix+key, []byte{}, 0).Err(); err != nil {
		return fmt.Errorf("declare option %s: %w", key, err)
	}
	return nil
}
