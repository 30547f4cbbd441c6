// Package cache provides a cache-aside layer over a shared key-value store,
// with an optional distributed-lock protocol that prevents many callers from
// regenerating the same expensive value at once (a cache stampede).
//
// Values are serialized as JSON. The cache holds no state of its own between
// calls; every read and write goes to the store, so any number of processes
// can share one cache through one Redis instance.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marshalljacobs12/upredis/internal/store"
)

// Defaults for the stampede-prevention protocol.
const (
	DefaultLockTTL       = 10 * time.Second
	DefaultWaitTimeout   = 5 * time.Second
	DefaultRetryInterval = 50 * time.Millisecond
)

// Loader produces a value on a cache miss.
type Loader func(ctx context.Context) (any, error)

// Options configures a Cache.
type Options struct {
	// Prefix namespaces all keys, including lock keys.
	Prefix string

	// DefaultTTL applies to writes that do not override it. Zero means no
	// expiry.
	DefaultTTL time.Duration

	// LockTTL bounds how long a crashed loader can hold its lease.
	LockTTL time.Duration

	// WaitTimeout bounds how long a waiter polls for the loader's value
	// before falling back to loading it itself.
	WaitTimeout time.Duration

	// RetryInterval is the waiter's polling period.
	RetryInterval time.Duration
}

func (o Options) lockTTL() time.Duration {
	if o.LockTTL > 0 {
		return o.LockTTL
	}

	return DefaultLockTTL
}

func (o Options) waitTimeout() time.Duration {
	if o.WaitTimeout > 0 {
		return o.WaitTimeout
	}

	return DefaultWaitTimeout
}

func (o Options) retryInterval() time.Duration {
	if o.RetryInterval > 0 {
		return o.RetryInterval
	}

	return DefaultRetryInterval
}

// Cache is a cache-aside layer over a Store.
type Cache struct {
	store store.Store
	opts  Options
}

// New creates a cache over the given store.
func New(s store.Store, opts Options) *Cache {
	return &Cache{store: s, opts: opts}
}

func (c *Cache) key(key string) string {
	return c.opts.Prefix + key
}

func (c *Cache) ttl(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}

	return c.opts.DefaultTTL
}

// Get reads key into dest. The bool reports whether the key was present.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	payload, found, err := c.store.Get(ctx, c.key(key))
	if err != nil || !found {
		return false, err
	}

	if err := json.Unmarshal([]byte(payload), dest); err != nil {
		return false, fmt.Errorf("cache: decode %q: %w", key, err)
	}

	return true, nil
}

// Set writes value under key. A zero ttl falls back to DefaultTTL.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %q: %w", key, err)
	}

	return c.store.Set(ctx, c.key(key), string(payload), c.ttl(ttl))
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	_, err := c.store.Delete(ctx, c.key(key))

	return err
}

// Has reports whether key is present without reading its value.
func (c *Cache) Has(ctx context.Context, key string) (bool, error) {
	return c.store.Exists(ctx, c.key(key))
}

// GetMany returns the raw serialized values for all keys that exist, in one
// store round trip.
func (c *Cache) GetMany(ctx context.Context, keys []string) (map[string]json.RawMessage, error) {
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = c.key(key)
	}

	values, err := c.store.GetMany(ctx, prefixed)
	if err != nil {
		return nil, err
	}

	result := make(map[string]json.RawMessage, len(values))

	for i, key := range keys {
		if payload, ok := values[prefixed[i]]; ok {
			result[key] = json.RawMessage(payload)
		}
	}

	return result, nil
}

// SetMany writes all entries with a shared ttl in one store round trip.
func (c *Cache) SetMany(ctx context.Context, entries map[string]any, ttl time.Duration) error {
	serialized := make(map[string]string, len(entries))

	for key, value := range entries {
		payload, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("cache: encode %q: %w", key, err)
		}

		serialized[c.key(key)] = string(payload)
	}

	return c.store.SetMany(ctx, serialized, c.ttl(ttl))
}

// DeleteMany removes the given keys and returns how many existed.
func (c *Cache) DeleteMany(ctx context.Context, keys ...string) (int64, error) {
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = c.key(key)
	}

	return c.store.Delete(ctx, prefixed...)
}

// GetOrSet reads key into dest, invoking loader and caching its result on a
// miss. Concurrent misses on the same key each invoke the loader; use
// GetOrSetSafe when the loader is expensive enough that duplicate work
// matters.
func (c *Cache) GetOrSet(ctx context.Context, key string, dest any, loader Loader, ttl time.Duration) error {
	found, err := c.Get(ctx, key, dest)
	if err != nil || found {
		return err
	}

	return c.load(ctx, key, dest, loader, ttl)
}

// GetOrSetSafe is GetOrSet with stampede prevention. On a miss, callers race
// for a short-lived lease on the key; the winner runs the loader once and
// caches the result while everyone else polls the cache for it. A waiter
// whose WaitTimeout elapses without seeing a value runs the loader itself,
// trading a possible duplicate load for liveness when the lease holder is
// slow or has crashed.
func (c *Cache) GetOrSetSafe(ctx context.Context, key string, dest any, loader Loader, ttl time.Duration) error {
	found, err := c.Get(ctx, key, dest)
	if err != nil || found {
		return err
	}

	lockKey := c.key(key) + ":lock"
	holder := uuid.NewString()

	acquired, err := c.store.SetNX(ctx, lockKey, holder, c.opts.lockTTL())
	if err != nil {
		return err
	}

	if acquired {
		// Sole loader. The lease is released on every exit path, loader
		// failure included; its TTL is the safety net if we crash first.
		defer func() {
			_, _ = c.store.CompareAndDelete(ctx, lockKey, holder)
		}()

		return c.load(ctx, key, dest, loader, ttl)
	}

	return c.waitForValue(ctx, key, dest, loader, ttl)
}

// waitForValue polls the cache until the lease holder's value appears or the
// wait times out.
func (c *Cache) waitForValue(ctx context.Context, key string, dest any, loader Loader, ttl time.Duration) error {
	ticker := time.NewTicker(c.opts.retryInterval())
	defer ticker.Stop()

	timeout := time.NewTimer(c.opts.waitTimeout())
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout.C:
			// The holder is slow or gone; load locally rather than block
			// forever.
			return c.load(ctx, key, dest, loader, ttl)
		case <-ticker.C:
			found, err := c.Get(ctx, key, dest)
			if err != nil {
				return err
			}

			if found {
				return nil
			}
		}
	}
}

// load runs the loader, caches its result, and decodes it into dest. A
// loader failure propagates unmodified and nothing is cached.
func (c *Cache) load(ctx context.Context, key string, dest any, loader Loader, ttl time.Duration) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %q: %w", key, err)
	}

	if err := c.store.Set(ctx, c.key(key), string(payload), c.ttl(ttl)); err != nil {
		return err
	}

	if dest == nil {
		return nil
	}

	// Round-trip through JSON so callers observe the same value a later
	// cache hit would produce.
	if err := json.Unmarshal(payload, dest); err != nil {
		return fmt.Errorf("cache: decode %q: %w", key, err)
	}

	return nil
}
