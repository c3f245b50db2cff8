package internal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runStoreContract(t *testing.T, newStore func(t *testing.T) KVStore) {
	ctx := context.Background()

	t.Run("hash round trip", func(t *testing.T) {
		s := newStore(t)
		_, found, err := s.HGet(ctx, "Person:1", "name")
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, s.HSet(ctx, "Person:1", map[string]string{"id": "1", "name": "ann", "age": "0"}))
		v, found, err := s.HGet(ctx, "Person:1", "name")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "ann", v)

		require.NoError(t, s.HSet(ctx, "Person:1", map[string]string{"name": "bob"}))
		v, _, err = s.HGet(ctx, "Person:1", "name")
		require.NoError(t, err)
		assert.Equal(t, "bob", v)

		v, found, err = s.HGet(ctx, "Person:1", "age")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "0", v)
	})

	t.Run("hdel removes fields", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.HSet(ctx, "Person:2", map[string]string{"id": "2", "nick": "x"}))
		require.NoError(t, s.HDel(ctx, "Person:2", "nick"))
		_, found, err := s.HGet(ctx, "Person:2", "nick")
		require.NoError(t, err)
		assert.False(t, found)

		exists, err := s.Exists(ctx, "Person:2")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("exists", func(t *testing.T) {
		s := newStore(t)
		exists, err := s.Exists(ctx, "Person:9")
		require.NoError(t, err)
		assert.False(t, exists)

		require.NoError(t, s.HSet(ctx, "Person:9", map[string]string{"id": "9"}))
		exists, err = s.Exists(ctx, "Person:9")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("list replace keeps order", func(t *testing.T) {
		s := newStore(t)
		members, err := s.ListMembers(ctx, "Person:1:tags")
		require.NoError(t, err)
		assert.Empty(t, members)

		require.NoError(t, s.ListReplace(ctx, "Person:1:tags", []string{"b", "a", "b"}))
		members, err = s.ListMembers(ctx, "Person:1:tags")
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a", "b"}, members)

		require.NoError(t, s.ListReplace(ctx, "Person:1:tags", []string{"c"}))
		members, err = s.ListMembers(ctx, "Person:1:tags")
		require.NoError(t, err)
		assert.Equal(t, []string{"c"}, members)

		require.NoError(t, s.ListReplace(ctx, "Person:1:tags", nil))
		members, err = s.ListMembers(ctx, "Person:1:tags")
		require.NoError(t, err)
		assert.Empty(t, members)
	})

	t.Run("incr counts from one", func(t *testing.T) {
		s := newStore(t)
		for want := int64(1); want <= 3; want++ {
			n, err := s.Incr(ctx, "Person:id")
			require.NoError(t, err)
			assert.Equal(t, want, n)
		}
	})

	t.Run("del removes hashes and lists", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.HSet(ctx, "Person:3", map[string]string{"id": "3"}))
		require.NoError(t, s.ListReplace(ctx, "Person:3:tags", []string{"a"}))
		require.NoError(t, s.Del(ctx, "Person:3", "Person:3:tags"))

		exists, err := s.Exists(ctx, "Person:3")
		require.NoError(t, err)
		assert.False(t, exists)
		members, err := s.ListMembers(ctx, "Person:3:tags")
		require.NoError(t, err)
		assert.Empty(t, members)
	})
}
