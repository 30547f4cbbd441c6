// Package ratelimit provides distributed admission control backed by Redis,
// with in-memory equivalents for tests and single-instance deployments.
//
// Three algorithms are available behind one Strategy interface: fixed window,
// sliding window, and token bucket. The algorithm is chosen once at
// construction via Config and never changes for the lifetime of a limiter.
//
// A rejected request is an ordinary Result with Allowed=false, never an
// error; errors are reserved for infrastructure failures (Redis unreachable,
// context expired), and the caller decides whether to fail open or closed.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Configuration errors, surfaced at construction and never at call time.
var (
	ErrUnknownAlgorithm = errors.New("ratelimit: unknown algorithm")
	ErrInvalidLimit     = errors.New("ratelimit: limit must be at least 1")
	ErrInvalidWindow    = errors.New("ratelimit: window must be positive")
	ErrInvalidCapacity  = errors.New("ratelimit: capacity must be at least 1")
	ErrInvalidRate      = errors.New("ratelimit: refill rate must be positive")
)

// Algorithm selects the admission control algorithm.
type Algorithm string

const (
	AlgorithmFixedWindow   Algorithm = "fixed-window"
	AlgorithmSlidingWindow Algorithm = "sliding-window"
	AlgorithmTokenBucket   Algorithm = "token-bucket"
)

// Result is the outcome of an admission check.
type Result struct {
	// Allowed reports whether the request is admitted.
	Allowed bool
	// Remaining is how many requests (or whole tokens) are left.
	Remaining int64
	// Limit is the configured limit (capacity for token buckets).
	Limit int64
	// RetryAfter is zero when allowed; when denied it is the suggested wait
	// before retrying. For token buckets this is the approximate time for
	// one token to regenerate, not an exact bound.
	RetryAfter time.Duration
}

// Limiter is the admission interface consumers such as the HTTP middleware
// depend on.
type Limiter interface {
	Limit(ctx context.Context, key string) (Result, error)
}

// Strategy is the three-operation capability set every algorithm implements.
type Strategy interface {
	// Limit records a request against key and decides admission.
	Limit(ctx context.Context, key string) (Result, error)

	// Peek reports what Limit would decide without recording anything.
	Peek(ctx context.Context, key string) (Result, error)

	// Reset clears all state for key, restoring first-call semantics.
	Reset(ctx context.Context, key string) error
}

// Config selects and parameterizes an algorithm. Limit and Window apply to
// the window algorithms; Capacity and RefillRate to the token bucket.
type Config struct {
	Algorithm Algorithm

	// Fixed and sliding window.
	Limit  int64
	Window time.Duration

	// Token bucket. RefillRate is tokens per second.
	Capacity   int64
	RefillRate float64

	// Prefix namespaces all keys. Defaults to "ratelimit:".
	Prefix string
}

func (c Config) validate() error {
	switch c.Algorithm {
	case AlgorithmFixedWindow, AlgorithmSlidingWindow:
		if c.Limit < 1 {
			return ErrInvalidLimit
		}

		if c.Window <= 0 {
			return ErrInvalidWindow
		}
	case AlgorithmTokenBucket:
		if c.Capacity < 1 {
			return ErrInvalidCapacity
		}

		if c.RefillRate <= 0 {
			return ErrInvalidRate
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAlgorithm, c.Algorithm)
	}

	return nil
}

func (c Config) prefix() string {
	if c.Prefix != "" {
		return c.Prefix
	}

	return "ratelimit:"
}

// RateLimiter namespaces keys and forwards to the configured strategy.
type RateLimiter struct {
	strategy Strategy
	prefix   string
}

// New creates a Redis-backed rate limiter. The sliding-window and
// token-bucket algorithms execute atomically as Redis scripts, so a single
// budget is enforced across any number of processes sharing the client's
// Redis instance.
func New(client *redis.Client, cfg Config) (*RateLimiter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var strategy Strategy

	switch cfg.Algorithm {
	case AlgorithmFixedWindow:
		strategy = newFixedWindow(client, cfg.Limit, cfg.Window)
	case AlgorithmSlidingWindow:
		s, err := newSlidingWindow(client, cfg.Limit, cfg.Window)
		if err != nil {
			return nil, err
		}

		strategy = s
	case AlgorithmTokenBucket:
		strategy = newTokenBucket(client, cfg.Capacity, cfg.RefillRate)
	}

	return &RateLimiter{strategy: strategy, prefix: cfg.prefix()}, nil
}

// NewMemory creates an in-process rate limiter with the same semantics as
// New. State is local to the process, so it does not enforce a global budget
// across replicas.
func NewMemory(cfg Config) (*RateLimiter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var strategy Strategy

	switch cfg.Algorithm {
	case AlgorithmFixedWindow:
		strategy = newMemoryFixedWindow(cfg.Limit, cfg.Window)
	case AlgorithmSlidingWindow:
		strategy = newMemorySlidingWindow(cfg.Limit, cfg.Window)
	case AlgorithmTokenBucket:
		strategy = newMemoryTokenBucket(cfg.Capacity, cfg.RefillRate)
	}

	return &RateLimiter{strategy: strategy, prefix: cfg.prefix()}, nil
}

// Limit records a request against key and decides admission.
func (l *RateLimiter) Limit(ctx context.Context, key string) (Result, error) {
	return l.strategy.Limit(ctx, l.prefix+key)
}

// Peek reports what Limit would decide without recording anything.
func (l *RateLimiter) Peek(ctx context.Context, key string) (Result, error) {
	return l.strategy.Peek(ctx, l.prefix+key)
}

// Reset clears all state for key.
func (l *RateLimiter) Reset(ctx context.Context, key string) error {
	return l.strategy.Reset(ctx, l.prefix+key)
}

// ceilSeconds rounds d up to a whole number of seconds.
func ceilSeconds(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}

	whole := d.Truncate(time.Second)
	if whole < d {
		whole += time.Second
	}

	return whole
}
