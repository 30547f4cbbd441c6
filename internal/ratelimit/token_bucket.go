package ratelimit

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:embed token_bucket.lua
var tokenBucketLua string

//go:embed token_bucket_peek.lua
var tokenBucketPeekLua string

var (
	tokenBucketScript     = redis.NewScript(tokenBucketLua)
	tokenBucketPeekScript = redis.NewScript(tokenBucketPeekLua)
)

// Idle buckets self-clean once fully refilled; the slack covers clock skew
// between callers.
const tokenBucketTTLSlack = 10 * time.Second

// tokenBucket stores {tokens, last_refill} per key in a Redis hash. Capacity
// bounds burst size; the refill rate bounds sustained throughput. Refill,
// decision, and write-back run as one Redis script.
type tokenBucket struct {
	client     *redis.Client
	capacity   int64
	refillRate float64
	ttlSeconds int64
}

func newTokenBucket(client *redis.Client, capacity int64, refillRate float64) *tokenBucket {
	refillFromEmpty := time.Duration(math.Ceil(float64(capacity)/refillRate)) * time.Second

	return &tokenBucket{
		client:     client,
		capacity:   capacity,
		refillRate: refillRate,
		ttlSeconds: int64((refillFromEmpty + tokenBucketTTLSlack).Seconds()),
	}
}

func (s *tokenBucket) Limit(ctx context.Context, key string) (Result, error) {
	values, err := tokenBucketScript.Run(ctx, s.client, []string{key},
		s.capacity,
		s.refillRate,
		time.Now().UnixMilli(),
		s.ttlSeconds,
	).Int64Slice()
	if err != nil {
		return Result{}, err
	}

	return s.toResult(values)
}

func (s *tokenBucket) Peek(ctx context.Context, key string) (Result, error) {
	values, err := tokenBucketPeekScript.Run(ctx, s.client, []string{key},
		s.capacity,
		s.refillRate,
		time.Now().UnixMilli(),
	).Int64Slice()
	if err != nil {
		return Result{}, err
	}

	return s.toResult(values)
}

// Reset deletes the bucket; the next access starts full again.
func (s *tokenBucket) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *tokenBucket) toResult(values []int64) (Result, error) {
	if len(values) != 2 {
		return Result{}, fmt.Errorf("ratelimit: unexpected script reply of length %d", len(values))
	}

	result := Result{
		Allowed:   values[0] == 1,
		Remaining: values[1],
		Limit:     s.capacity,
	}

	if !result.Allowed {
		result.RetryAfter = retryForOneToken(s.refillRate)
	}

	return result, nil
}

// retryForOneToken approximates the wait for a single token to regenerate.
// It ignores partial balances, so it can overestimate.
func retryForOneToken(refillRate float64) time.Duration {
	return time.Duration(math.Ceil(1/refillRate)) * time.Second
}
