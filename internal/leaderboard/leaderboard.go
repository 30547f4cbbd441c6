// Package leaderboard exposes Redis sorted sets as ranked boards. It is a
// thin pass-through: ranking, ordering, and tie-breaking are Redis semantics,
// not reimplemented here.
package leaderboard

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Entry is a member with its score.
type Entry struct {
	Member string  `json:"member"`
	Score  float64 `json:"score"`
}

// Leaderboard manages ranked boards keyed by name. Higher scores rank first.
type Leaderboard struct {
	client *redis.Client
	prefix string
}

// New creates a leaderboard client. The prefix namespaces board keys;
// "leaderboard:" is used when empty.
func New(client *redis.Client, prefix string) *Leaderboard {
	if prefix == "" {
		prefix = "leaderboard:"
	}

	return &Leaderboard{client: client, prefix: prefix}
}

func (l *Leaderboard) key(board string) string {
	return l.prefix + board
}

// Add sets a member's score, inserting the member if absent.
func (l *Leaderboard) Add(ctx context.Context, board, member string, score float64) error {
	return l.client.ZAdd(ctx, l.key(board), redis.Z{Member: member, Score: score}).Err()
}

// Increment adds delta to a member's score and returns the new score.
func (l *Leaderboard) Increment(ctx context.Context, board, member string, delta float64) (float64, error) {
	return l.client.ZIncrBy(ctx, l.key(board), delta, member).Result()
}

// Remove deletes members from the board.
func (l *Leaderboard) Remove(ctx context.Context, board string, members ...string) error {
	if len(members) == 0 {
		return nil
	}

	values := make([]interface{}, len(members))
	for i, m := range members {
		values[i] = m
	}

	return l.client.ZRem(ctx, l.key(board), values...).Err()
}

// Score returns a member's score. The bool reports membership.
func (l *Leaderboard) Score(ctx context.Context, board, member string) (float64, bool, error) {
	score, err := l.client.ZScore(ctx, l.key(board), member).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}

		return 0, false, err
	}

	return score, true, nil
}

// Rank returns a member's zero-based rank, best score first. The bool
// reports membership.
func (l *Leaderboard) Rank(ctx context.Context, board, member string) (int64, bool, error) {
	rank, err := l.client.ZRevRank(ctx, l.key(board), member).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}

		return 0, false, err
	}

	return rank, true, nil
}

// Top returns the n best-scored entries in descending order.
func (l *Leaderboard) Top(ctx context.Context, board string, n int64) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	members, err := l.client.ZRevRangeWithScores(ctx, l.key(board), 0, n-1).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(members))

	for _, z := range members {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}

		entries = append(entries, Entry{Member: member, Score: z.Score})
	}

	return entries, nil
}

// Count returns the number of members on the board.
func (l *Leaderboard) Count(ctx context.Context, board string) (int64, error) {
	return l.client.ZCard(ctx, l.key(board)).Result()
}

// Clear deletes the whole board.
func (l *Leaderboard) Clear(ctx context.Context, board string) error {
	return l.client.Del(ctx, l.key(board)).Err()
}
