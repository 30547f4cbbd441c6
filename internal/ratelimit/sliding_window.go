package ratelimit

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jaevor/go-nanoid"
	"github.com/redis/go-redis/v9"
)

//go:embed sliding_window.lua
var slidingWindowLua string

//go:embed sliding_window_peek.lua
var slidingWindowPeekLua string

// Scripts are process-wide constants; go-redis loads them on first use and
// runs them by SHA afterwards.
var (
	slidingWindowScript     = redis.NewScript(slidingWindowLua)
	slidingWindowPeekScript = redis.NewScript(slidingWindowPeekLua)
)

const memberSuffixLength = 8

// slidingWindow keeps a per-key log of request timestamps in a sorted set
// and admits while fewer than limit entries fall inside the trailing window.
// Prune, count, insert, and expiry refresh run as one Redis script, so
// concurrent callers observe a consistent order of admits and denies.
type slidingWindow struct {
	client *redis.Client
	limit  int64
	window time.Duration

	// newSuffix disambiguates members that land in the same millisecond.
	newSuffix func() string
}

func newSlidingWindow(client *redis.Client, limit int64, window time.Duration) (*slidingWindow, error) {
	suffix, err := nanoid.Standard(memberSuffixLength)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: member id generator: %w", err)
	}

	return &slidingWindow{
		client:    client,
		limit:     limit,
		window:    window,
		newSuffix: suffix,
	}, nil
}

func (s *slidingWindow) Limit(ctx context.Context, key string) (Result, error) {
	now := time.Now().UnixMilli()
	member := fmt.Sprintf("%d-%s", now, s.newSuffix())

	values, err := slidingWindowScript.Run(ctx, s.client, []string{key},
		now,
		s.window.Milliseconds(),
		s.limit,
		member,
	).Int64Slice()
	if err != nil {
		return Result{}, err
	}

	if len(values) != 2 {
		return Result{}, fmt.Errorf("ratelimit: unexpected script reply of length %d", len(values))
	}

	allowed, count := values[0] == 1, values[1]

	result := Result{
		Allowed:   allowed,
		Remaining: max(0, s.limit-count),
		Limit:     s.limit,
	}

	if !allowed {
		// The oldest entry may sit at the very start of the window, so a
		// full window is the only safe bound.
		result.RetryAfter = ceilSeconds(s.window)
	}

	return result, nil
}

func (s *slidingWindow) Peek(ctx context.Context, key string) (Result, error) {
	count, err := slidingWindowPeekScript.Run(ctx, s.client, []string{key},
		time.Now().UnixMilli(),
		s.window.Milliseconds(),
	).Int64()
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Allowed:   count < s.limit,
		Remaining: max(0, s.limit-count),
		Limit:     s.limit,
	}

	if !result.Allowed {
		result.RetryAfter = ceilSeconds(s.window)
	}

	return result, nil
}

// Reset deletes the whole request log.
func (s *slidingWindow) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
