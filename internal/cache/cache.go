package cache

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable indicates the fast layer could not be reached. Callers are
// expected to degrade to the durable store instead of failing.
var ErrUnavailable = errors.New("cache unavailable")

// Cache defines the contract for fast-layer implementations
type Cache interface {
	// Set stores a value under key with the given TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value by key.
	// Returns the value and true if found, nil and false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// SetMulti stores all items with the given TTL
	SetMulti(ctx context.Context, items map[string][]byte, ttl time.Duration) error

	// Delete removes a value by key
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key with the given prefix
	DeletePrefix(ctx context.Context, prefix string) error

	// Ping verifies the backend is reachable
	Ping(ctx context.Context) error

	// Close closes any underlying connections
	Close() error
}
