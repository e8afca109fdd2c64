// Package cache provides read-side caching for catalog listings and admin
// analytics snapshots.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned on a cache miss, including entries past their TTL.
var ErrNotFound = errors.New("key not found")

type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Config struct {
	Provider              string
	RedisConnectionString string
}

func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "memory", "":
		return NewMemoryProvider()
	case "redis":
		return NewRedisProvider(cfg.RedisConnectionString)
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", cfg.Provider)
	}
}

func CatalogKey(view string) string {
	return fmt.Sprintf("catalog:%s", view)
}

func AnalyticsKey(window string) string {
	return fmt.Sprintf("analytics:%s", window)
}
