package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Keys are namespaced so the cache can share a redis with other consumers
// (sessions, rate limits) without collisions.
const redisKeyPrefix = "stackmart:cache:"

// RedisProvider backs the cache with redis for multi-instance deployments,
// where each API replica must see the same catalog and analytics snapshots.
type RedisProvider struct {
	client *redis.Client
}

func NewRedisProvider(connectionString string) (*RedisProvider, error) {
	opts, err := redis.ParseURL(connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis connection string: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisProvider{client: client}, nil
}

func (r *RedisProvider) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *RedisProvider) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, redisKeyPrefix+key, value, ttl).Err()
}

func (r *RedisProvider) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, redisKeyPrefix+key).Err()
}

func (r *RedisProvider) Close() error {
	return r.client.Close()
}
