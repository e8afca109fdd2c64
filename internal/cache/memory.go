package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// The catalog and analytics snapshots are a handful of keys; the size cap
// only matters if a caller starts caching per-request data.
const memoryCacheSize = 10_000

// MemoryProvider is the single-process default. Entries carry their own
// deadline because the LRU itself never expires anything.
type MemoryProvider struct {
	cache *lru.Cache[string, memoryEntry]
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func NewMemoryProvider() (*MemoryProvider, error) {
	c, err := lru.New[string, memoryEntry](memoryCacheSize)
	if err != nil {
		return nil, err
	}
	return &MemoryProvider{cache: c}, nil
}

func (m *MemoryProvider) Get(ctx context.Context, key string) (string, error) {
	_ = ctx
	entry, ok := m.cache.Get(key)
	if !ok {
		return "", ErrNotFound
	}
	if time.Now().After(entry.expiresAt) {
		m.cache.Remove(key)
		return "", ErrNotFound
	}
	return entry.value, nil
}

func (m *MemoryProvider) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	_ = ctx
	m.cache.Add(key, memoryEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
	return nil
}

func (m *MemoryProvider) Delete(ctx context.Context, key string) error {
	_ = ctx
	m.cache.Remove(key)
	return nil
}

func (m *MemoryProvider) Close() error {
	return nil
}
