package store

import (
	"context"
	"time"
)

// Store is the key-value interface the cache layer depends on. All
// implementations must be safe for concurrent use; coordination between
// independent processes relies on SetNX and CompareAndDelete being atomic.
type Store interface {
	// Get returns the value for key. The bool reports whether the key
	// exists; a missing key is not an error.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX stores value under key only if the key is absent, returning
	// whether the write happened. This is the lease-acquisition primitive.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete removes the given keys and returns how many existed.
	Delete(ctx context.Context, keys ...string) (int64, error)

	// Exists reports whether key is present and not expired.
	Exists(ctx context.Context, key string) (bool, error)

	// GetMany returns the values for all keys that exist.
	GetMany(ctx context.Context, keys []string) (map[string]string, error)

	// SetMany stores all entries with a shared ttl in one round trip.
	SetMany(ctx context.Context, entries map[string]string, ttl time.Duration) error

	// CompareAndDelete removes key only if it currently holds value,
	// returning whether it did. This is the lease-release primitive: a
	// holder must never delete a lease it no longer owns.
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
}
