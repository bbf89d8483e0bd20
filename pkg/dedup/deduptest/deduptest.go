// Package deduptest holds behaviour tests shared by every dedup.Store.
package deduptest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ogulcanaydogan/spend-guardian/pkg/dedup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreTests exercises a Store implementation. newStore must return an
// empty store on each call.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) dedup.Store) {
	t.Helper()

	t.Run("MarkOnce", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		key := dedup.Key{Subject: "limit:daily", Condition: "80pct", Scope: "daily:2025-02-14"}

		seen, err := store.Check(ctx, key)
		require.NoError(t, err)
		assert.False(t, seen)

		marked, err := store.Mark(ctx, key)
		require.NoError(t, err)
		assert.True(t, marked)

		marked, err = store.Mark(ctx, key)
		require.NoError(t, err)
		assert.False(t, marked, "second mark must report already present")

		seen, err = store.Check(ctx, key)
		require.NoError(t, err)
		assert.True(t, seen)
	})

	t.Run("ScopesAreIndependent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		w07 := dedup.Key{Subject: "limit:weekly", Condition: "100pct", Scope: "weekly:2025-W07"}
		w08 := dedup.Key{Subject: "limit:weekly", Condition: "100pct", Scope: "weekly:2025-W08"}

		marked, err := store.Mark(ctx, w07)
		require.NoError(t, err)
		assert.True(t, marked)

		marked, err = store.Mark(ctx, w08)
		require.NoError(t, err)
		assert.True(t, marked)
	})

	t.Run("InvalidKey", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Mark(context.Background(), dedup.Key{Subject: "goal:1", Condition: "50pct"})
		assert.Error(t, err)
	})

	t.Run("ClearPrefix", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		keys := []dedup.Key{
			{Subject: "goal:1", Condition: "50pct", Scope: "lifetime"},
			{Subject: "goal:1", Condition: "deadline_3", Scope: "deadline"},
			{Subject: "goal:10", Condition: "50pct", Scope: "lifetime"},
			{Subject: "goal:2", Condition: "50pct", Scope: "lifetime"},
		}
		for _, k := range keys {
			_, err := store.Mark(ctx, k)
			require.NoError(t, err)
		}

		n, err := store.ClearPrefix(ctx, dedup.SubjectPrefix("goal:1"))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		seen, err := store.Check(ctx, keys[0])
		require.NoError(t, err)
		assert.False(t, seen)

		seen, err = store.Check(ctx, keys[2])
		require.NoError(t, err)
		assert.True(t, seen, "goal:10 must not match goal:1 prefix")
	})

	t.Run("ClearPrefixMultibyte", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		cafe := dedup.Key{Subject: "goal:café", Condition: "50pct", Scope: "lifetime"}
		cafes := dedup.Key{Subject: "goal:cafés", Condition: "50pct", Scope: "lifetime"}
		for _, k := range []dedup.Key{cafe, cafes} {
			_, err := store.Mark(ctx, k)
			require.NoError(t, err)
		}

		n, err := store.ClearPrefix(ctx, dedup.SubjectPrefix("goal:café"))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		seen, err := store.Check(ctx, cafe)
		require.NoError(t, err)
		assert.False(t, seen)

		seen, err = store.Check(ctx, cafes)
		require.NoError(t, err)
		assert.True(t, seen)
	})

	t.Run("Prune", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		old := dedup.Key{Subject: "limit:daily", Condition: "80pct", Scope: "daily:2025-02-13"}
		cur := dedup.Key{Subject: "limit:daily", Condition: "80pct", Scope: "daily:2025-02-14"}
		other := dedup.Key{Subject: "limit:weekly", Condition: "80pct", Scope: "weekly:2025-W06"}
		for _, k := range []dedup.Key{old, cur, other} {
			_, err := store.Mark(ctx, k)
			require.NoError(t, err)
		}

		n, err := store.Prune(ctx, "limit:daily", cur.Scope)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		seen, err := store.Check(ctx, cur)
		require.NoError(t, err)
		assert.True(t, seen)

		seen, err = store.Check(ctx, other)
		require.NoError(t, err)
		assert.True(t, seen)
	})

	t.Run("ConcurrentMarkHasOneWinner", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		key := dedup.Key{Subject: "inactivity", Condition: "inactivity_24h", Scope: "episode:1"}

		var winners atomic.Int32
		var wg sync.WaitGroup
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				marked, err := store.Mark(ctx, key)
				if assert.NoError(t, err) && marked {
					winners.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), winners.Load())
	})
}
