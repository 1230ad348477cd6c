package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is the in-process Cache implementation, used when no Redis
// host is configured and in tests
type MemoryCache struct {
	cache *gocache.Cache
}

// Ensure MemoryCache implements Cache
var _ Cache = (*MemoryCache)(nil)

func NewMemoryCache(defaultTTL, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{cache: gocache.New(defaultTTL, cleanupInterval)}
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.cache.Set(key, value, ttl)
	return nil
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, found := m.cache.Get(key)
	if !found {
		return nil, false, nil
	}
	data, ok := val.([]byte)
	if !ok {
		return nil, false, nil
	}
	return data, true, nil
}

func (m *MemoryCache) SetMulti(_ context.Context, items map[string][]byte, ttl time.Duration) error {
	for key, value := range items {
		m.cache.Set(key, value, ttl)
	}
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}

func (m *MemoryCache) DeletePrefix(_ context.Context, prefix string) error {
	for key := range m.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			m.cache.Delete(key)
		}
	}
	return nil
}

func (m *MemoryCache) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory cache
func (m *MemoryCache) Close() error {
	return nil
}
