//go:build integration

package store_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/marshalljacobs12/upredis/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRedisAddr() string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

func TestRedisStoreIntegration(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr: getRedisAddr(),
	})
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	s := store.NewRedisStore(client)
	prefix := fmt.Sprintf("upredis_test:%d:", time.Now().UnixNano())

	t.Run("set and get", func(t *testing.T) {
		key := prefix + "sg"

		err := s.Set(ctx, key, "value1", time.Minute)
		require.NoError(t, err)

		value, found, err := s.Get(ctx, key)

		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "value1", value)

		// Cleanup
		client.Del(ctx, key)
	})

	t.Run("missing key is not an error", func(t *testing.T) {
		_, found, err := s.Get(ctx, prefix+"missing")

		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("setnx claims once", func(t *testing.T) {
		key := prefix + "nx"

		ok, err := s.SetNX(ctx, key, "holder1", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.SetNX(ctx, key, "holder2", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		client.Del(ctx, key)
	})

	t.Run("compare and delete respects holder", func(t *testing.T) {
		key := prefix + "cad"

		require.NoError(t, s.Set(ctx, key, "holder1", time.Minute))

		ok, err := s.CompareAndDelete(ctx, key, "holder2")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = s.CompareAndDelete(ctx, key, "holder1")
		require.NoError(t, err)
		assert.True(t, ok)

		found, err := s.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("batched operations round trip", func(t *testing.T) {
		entries := map[string]string{
			prefix + "m1": "1",
			prefix + "m2": "2",
		}

		require.NoError(t, s.SetMany(ctx, entries, time.Minute))

		values, err := s.GetMany(ctx, []string{prefix + "m1", prefix + "m2", prefix + "m3"})

		require.NoError(t, err)
		assert.Equal(t, entries, values)

		deleted, err := s.Delete(ctx, prefix+"m1", prefix+"m2")
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)
	})
}
