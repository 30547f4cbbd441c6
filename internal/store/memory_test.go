package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/marshalljacobs12/upredis/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetSet(t *testing.T) {
	t.Run("returns stored value", func(t *testing.T) {
		s := store.NewMemoryStore()

		err := s.Set(context.Background(), "key1", "value1", 0)
		require.NoError(t, err)

		value, found, err := s.Get(context.Background(), "key1")

		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "value1", value)
	})

	t.Run("missing key is not an error", func(t *testing.T) {
		s := store.NewMemoryStore()

		value, found, err := s.Get(context.Background(), "missing")

		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, value)
	})

	t.Run("expired value is not returned", func(t *testing.T) {
		s := store.NewMemoryStore()

		_ = s.Set(context.Background(), "key1", "value1", 10*time.Millisecond)

		time.Sleep(20 * time.Millisecond)

		_, found, err := s.Get(context.Background(), "key1")

		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("overwrite replaces value", func(t *testing.T) {
		s := store.NewMemoryStore()

		_ = s.Set(context.Background(), "key1", "old", 0)
		_ = s.Set(context.Background(), "key1", "new", 0)

		value, _, err := s.Get(context.Background(), "key1")

		require.NoError(t, err)
		assert.Equal(t, "new", value)
	})
}

func TestMemoryStore_SetNX(t *testing.T) {
	t.Run("first write wins", func(t *testing.T) {
		s := store.NewMemoryStore()

		ok, err := s.SetNX(context.Background(), "lock", "holder1", time.Minute)

		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.SetNX(context.Background(), "lock", "holder2", time.Minute)

		require.NoError(t, err)
		assert.False(t, ok, "second SetNX should not overwrite")

		value, _, _ := s.Get(context.Background(), "lock")
		assert.Equal(t, "holder1", value)
	})

	t.Run("succeeds after expiry", func(t *testing.T) {
		s := store.NewMemoryStore()

		_, _ = s.SetNX(context.Background(), "lock", "holder1", 10*time.Millisecond)

		time.Sleep(20 * time.Millisecond)

		ok, err := s.SetNX(context.Background(), "lock", "holder2", time.Minute)

		require.NoError(t, err)
		assert.True(t, ok, "expired key should be claimable")
	})
}

func TestMemoryStore_Delete(t *testing.T) {
	t.Run("reports number of deleted keys", func(t *testing.T) {
		s := store.NewMemoryStore()

		_ = s.Set(context.Background(), "a", "1", 0)
		_ = s.Set(context.Background(), "b", "2", 0)

		deleted, err := s.Delete(context.Background(), "a", "b", "missing")

		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)
	})
}

func TestMemoryStore_Exists(t *testing.T) {
	s := store.NewMemoryStore()

	_ = s.Set(context.Background(), "key1", "value1", 0)

	found, err := s.Exists(context.Background(), "key1")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = s.Exists(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStore_Batches(t *testing.T) {
	t.Run("set many then get many", func(t *testing.T) {
		s := store.NewMemoryStore()

		err := s.SetMany(context.Background(), map[string]string{
			"a": "1",
			"b": "2",
		}, 0)
		require.NoError(t, err)

		values, err := s.GetMany(context.Background(), []string{"a", "b", "missing"})

		require.NoError(t, err)
		assert.Equal(t, map[string]string{"a": "1", "b": "2"}, values)
	})

	t.Run("empty batches are no-ops", func(t *testing.T) {
		s := store.NewMemoryStore()

		values, err := s.GetMany(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, values)

		require.NoError(t, s.SetMany(context.Background(), nil, 0))
	})
}

func TestMemoryStore_CompareAndDelete(t *testing.T) {
	t.Run("deletes only when value matches", func(t *testing.T) {
		s := store.NewMemoryStore()

		_ = s.Set(context.Background(), "lock", "holder1", 0)

		ok, err := s.CompareAndDelete(context.Background(), "lock", "holder2")

		require.NoError(t, err)
		assert.False(t, ok, "mismatched holder must not delete")

		ok, err = s.CompareAndDelete(context.Background(), "lock", "holder1")

		require.NoError(t, err)
		assert.True(t, ok)

		found, _ := s.Exists(context.Background(), "lock")
		assert.False(t, found)
	})
}
