package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindow counts requests in buckets aligned to multiples of the window
// length. Each bucket is a plain Redis counter that self-destructs a window
// after its first write.
//
// The INCR and the EXPIRE on first write are two separate commands, not a
// transaction. A crash between them leaves a bucket with no expiry; it stops
// affecting admission at the next window rollover but lingers until deleted.
// This is an accepted trade-off, kept in exchange for the cheap INCR path.
type fixedWindow struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func newFixedWindow(client *redis.Client, limit int64, window time.Duration) *fixedWindow {
	return &fixedWindow{client: client, limit: limit, window: window}
}

// bucketKey derives the current window's key by flooring now to a multiple
// of the window length.
func (s *fixedWindow) bucketKey(key string, now time.Time) string {
	windowStart := now.UnixMilli() - now.UnixMilli()%s.window.Milliseconds()

	return fmt.Sprintf("%s:%d", key, windowStart)
}

// windowEnd returns when the window containing now rolls over.
func (s *fixedWindow) windowEnd(now time.Time) time.Time {
	windowStart := now.UnixMilli() - now.UnixMilli()%s.window.Milliseconds()

	return time.UnixMilli(windowStart).Add(s.window)
}

func (s *fixedWindow) Limit(ctx context.Context, key string) (Result, error) {
	now := time.Now()
	bucket := s.bucketKey(key, now)

	count, err := s.client.Incr(ctx, bucket).Result()
	if err != nil {
		return Result{}, err
	}

	if count == 1 {
		// First write in this window: arm the bucket's self-destruct.
		if err := s.client.Expire(ctx, bucket, s.window).Err(); err != nil {
			return Result{}, err
		}
	}

	result := Result{
		Allowed:   count <= s.limit,
		Remaining: max(0, s.limit-count),
		Limit:     s.limit,
	}

	if !result.Allowed {
		result.RetryAfter = ceilSeconds(s.windowEnd(now).Sub(now))
	}

	return result, nil
}

func (s *fixedWindow) Peek(ctx context.Context, key string) (Result, error) {
	now := time.Now()

	count, err := s.client.Get(ctx, s.bucketKey(key, now)).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return Result{}, err
		}

		count = 0
	}

	result := Result{
		Allowed:   count < s.limit,
		Remaining: max(0, s.limit-count),
		Limit:     s.limit,
	}

	if !result.Allowed {
		result.RetryAfter = ceilSeconds(s.windowEnd(now).Sub(now))
	}

	return result, nil
}

// Reset deletes the current window's bucket only; prior windows self-expire.
func (s *fixedWindow) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.bucketKey(key, time.Now())).Err()
}
