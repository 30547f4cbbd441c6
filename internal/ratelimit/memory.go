package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// The in-memory strategies mirror the Redis ones exactly, with a mutex
// standing in for script atomicity. They back unit tests and single-process
// deployments; state is never shared across replicas.

type fixedWindowState struct {
	count       int64
	windowStart int64 // unix milliseconds
}

type memoryFixedWindow struct {
	mu      sync.Mutex
	limit   int64
	window  time.Duration
	buckets map[string]*fixedWindowState
}

func newMemoryFixedWindow(limit int64, window time.Duration) *memoryFixedWindow {
	return &memoryFixedWindow{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*fixedWindowState),
	}
}

func (s *memoryFixedWindow) currentWindow(now time.Time) int64 {
	return now.UnixMilli() - now.UnixMilli()%s.window.Milliseconds()
}

func (s *memoryFixedWindow) Limit(_ context.Context, key string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	windowStart := s.currentWindow(now)

	state, ok := s.buckets[key]
	if !ok || state.windowStart != windowStart {
		state = &fixedWindowState{windowStart: windowStart}
		s.buckets[key] = state
	}

	state.count++

	result := Result{
		Allowed:   state.count <= s.limit,
		Remaining: max(0, s.limit-state.count),
		Limit:     s.limit,
	}

	if !result.Allowed {
		windowEnd := time.UnixMilli(windowStart).Add(s.window)
		result.RetryAfter = ceilSeconds(windowEnd.Sub(now))
	}

	return result, nil
}

func (s *memoryFixedWindow) Peek(_ context.Context, key string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	windowStart := s.currentWindow(now)

	var count int64
	if state, ok := s.buckets[key]; ok && state.windowStart == windowStart {
		count = state.count
	}

	result := Result{
		Allowed:   count < s.limit,
		Remaining: max(0, s.limit-count),
		Limit:     s.limit,
	}

	if !result.Allowed {
		windowEnd := time.UnixMilli(windowStart).Add(s.window)
		result.RetryAfter = ceilSeconds(windowEnd.Sub(now))
	}

	return result, nil
}

func (s *memoryFixedWindow) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.buckets, key)

	return nil
}

type memorySlidingWindow struct {
	mu       sync.Mutex
	limit    int64
	window   time.Duration
	requests map[string][]time.Time
}

func newMemorySlidingWindow(limit int64, window time.Duration) *memorySlidingWindow {
	return &memorySlidingWindow{
		limit:    limit,
		window:   window,
		requests: make(map[string][]time.Time),
	}
}

// prune drops entries older than the window and returns what survives.
// Callers must hold the mutex.
func (s *memorySlidingWindow) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-s.window)
	valid := s.requests[key][:0]

	for _, ts := range s.requests[key] {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}

	s.requests[key] = valid

	return valid
}

func (s *memorySlidingWindow) Limit(_ context.Context, key string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	valid := s.prune(key, now)
	count := int64(len(valid))

	allowed := count < s.limit
	if allowed {
		s.requests[key] = append(valid, now)
		count++
	}

	result := Result{
		Allowed:   allowed,
		Remaining: max(0, s.limit-count),
		Limit:     s.limit,
	}

	if !allowed {
		result.RetryAfter = ceilSeconds(s.window)
	}

	return result, nil
}

func (s *memorySlidingWindow) Peek(_ context.Context, key string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := int64(len(s.prune(key, time.Now())))

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

func (s *memorySlidingWindow) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.requests, key)

	return nil
}

type bucketState struct {
	tokens     float64
	lastRefill time.Time
}

type memoryTokenBucket struct {
	mu         sync.Mutex
	capacity   int64
	refillRate float64
	buckets    map[string]*bucketState
}

func newMemoryTokenBucket(capacity int64, refillRate float64) *memoryTokenBucket {
	return &memoryTokenBucket{
		capacity:   capacity,
		refillRate: refillRate,
		buckets:    make(map[string]*bucketState),
	}
}

// refilled returns the bucket for key with the earned refill applied. The
// state is not written back unless the caller keeps it. Callers must hold
// the mutex.
func (s *memoryTokenBucket) refilled(key string, now time.Time) *bucketState {
	state, ok := s.buckets[key]
	if !ok {
		// First touch starts with a full bucket.
		return &bucketState{tokens: float64(s.capacity), lastRefill: now}
	}

	elapsed := now.Sub(state.lastRefill)
	if elapsed < 0 {
		elapsed = 0
	}

	tokens := state.tokens + elapsed.Seconds()*s.refillRate

	return &bucketState{
		tokens:     math.Min(tokens, float64(s.capacity)),
		lastRefill: now,
	}
}

func (s *memoryTokenBucket) Limit(_ context.Context, key string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.refilled(key, time.Now())

	allowed := state.tokens >= 1
	if allowed {
		state.tokens--
	}

	s.buckets[key] = state

	result := Result{
		Allowed:   allowed,
		Remaining: int64(math.Floor(state.tokens)),
		Limit:     s.capacity,
	}

	if !allowed {
		result.RetryAfter = retryForOneToken(s.refillRate)
	}

	return result, nil
}

func (s *memoryTokenBucket) Peek(_ context.Context, key string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.refilled(key, time.Now())

	result := Result{
		Allowed:   state.tokens >= 1,
		Remaining: int64(math.Floor(state.tokens)),
		Limit:     s.capacity,
	}

	if !result.Allowed {
		result.RetryAfter = retryForOneToken(s.refillRate)
	}

	return result, nil
}

func (s *memoryTokenBucket) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.buckets, key)

	return nil
}
