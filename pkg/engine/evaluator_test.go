package engine_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/ogulcanaydogan/spend-guardian/pkg/dedup"
	"github.com/ogulcanaydogan/spend-guardian/pkg/engine"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func labelsOf(bps []engine.Breakpoint) []string {
	out := []string{}
	for _, bp := range bps {
		out = append(out, bp.Label)
	}
	return out
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestEvaluate_DailyScenario(t *testing.T) {
	eval := engine.NewEvaluator(dedup.NewMemory(), discardLogger())
	ctx := context.Background()
	scope := "daily:2025-02-14"

	fired, err := eval.Evaluate(ctx, "limit:daily", scope, d("0.85"), engine.LimitLadder)
	require.NoError(t, err)
	assert.Equal(t, []string{"80pct"}, labelsOf(fired))

	fired, err = eval.Evaluate(ctx, "limit:daily", scope, d("0.95"), engine.LimitLadder)
	require.NoError(t, err)
	assert.Equal(t, []string{"90pct"}, labelsOf(fired))

	fired, err = eval.Evaluate(ctx, "limit:daily", scope, d("1.30"), engine.LimitLadder)
	require.NoError(t, err)
	assert.Equal(t, []string{"100pct"}, labelsOf(fired))

	fired, err = eval.Evaluate(ctx, "limit:daily", scope, d("1.30"), engine.LimitLadder)
	require.NoError(t, err)
	assert.Empty(t, fired)
}

func TestEvaluate_JumpFiresAllInOrder(t *testing.T) {
	eval := engine.NewEvaluator(dedup.NewMemory(), discardLogger())
	ctx := context.Background()

	fired, err := eval.Evaluate(ctx, "limit:weekly", "weekly:2025-W07", d("0.70"), engine.LimitLadder)
	require.NoError(t, err)
	assert.Empty(t, fired)

	fired, err = eval.Evaluate(ctx, "limit:weekly", "weekly:2025-W07", d("1.05"), engine.LimitLadder)
	require.NoError(t, err)
	assert.Equal(t, []string{"80pct", "90pct", "100pct"}, labelsOf(fired))

	fired, err = eval.Evaluate(ctx, "limit:weekly", "weekly:2025-W07", d("2"), engine.LimitLadder)
	require.NoError(t, err)
	assert.Empty(t, fired)
}

func TestEvaluate_GoalFirstCall(t *testing.T) {
	eval := engine.NewEvaluator(dedup.NewMemory(), discardLogger())

	fired, err := eval.Evaluate(context.Background(), "goal:g1", "lifetime", d("0.92"), engine.GoalLadder)
	require.NoError(t, err)
	assert.Equal(t, []string{"50pct", "75pct", "90pct"}, labelsOf(fired))
}

func TestEvaluate_AtMostOnce(t *testing.T) {
	eval := engine.NewEvaluator(dedup.NewMemory(), discardLogger())
	ctx := context.Background()

	counts := map[string]int{}
	for v := 0; v <= 150; v += 5 {
		fired, err := eval.Evaluate(ctx, "goal:g1", "lifetime", decimal.New(int64(v), -2), engine.GoalLadder)
		require.NoError(t, err)
		for _, bp := range fired {
			counts[bp.Label]++
		}
	}
	assert.Equal(t, map[string]int{"50pct": 1, "75pct": 1, "90pct": 1, "completed": 1}, counts)
}

func TestEvaluate_SkipsBelowFired(t *testing.T) {
	store := dedup.NewMemory()
	ctx := context.Background()
	_, err := store.Mark(ctx, dedup.Key{Subject: "limit:daily", Condition: "90pct", Scope: "daily:2025-02-14"})
	require.NoError(t, err)

	eval := engine.NewEvaluator(store, discardLogger())
	fired, err := eval.Evaluate(ctx, "limit:daily", "daily:2025-02-14", d("0.95"), engine.LimitLadder)
	require.NoError(t, err)
	assert.Empty(t, fired, "80pct sits below an already fired breakpoint")

	fired, err = eval.Evaluate(ctx, "limit:daily", "daily:2025-02-14", d("1"), engine.LimitLadder)
	require.NoError(t, err)
	assert.Equal(t, []string{"100pct"}, labelsOf(fired))
}

func TestEvaluate_InvertedLadder(t *testing.T) {
	eval := engine.NewEvaluator(dedup.NewMemory(), discardLogger())
	ctx := context.Background()

	fired, err := eval.Evaluate(ctx, "goal:g1", "deadline", decimal.NewFromInt(5), engine.DeadlineLadder)
	require.NoError(t, err)
	assert.Empty(t, fired)

	fired, err = eval.Evaluate(ctx, "goal:g1", "deadline", decimal.NewFromInt(3), engine.DeadlineLadder)
	require.NoError(t, err)
	assert.Equal(t, []string{"deadline_3"}, labelsOf(fired))

	fired, err = eval.Evaluate(ctx, "goal:g1", "deadline", decimal.NewFromInt(1), engine.DeadlineLadder)
	require.NoError(t, err)
	assert.Equal(t, []string{"deadline_2", "deadline_1"}, labelsOf(fired))
}

func TestEvaluate_InvalidScopeFailsOpen(t *testing.T) {
	store := dedup.NewMemory()
	eval := engine.NewEvaluator(store, discardLogger())
	ctx := context.Background()

	for range 2 {
		fired, err := eval.Evaluate(ctx, "limit:daily", "", d("0.95"), engine.LimitLadder)
		require.NoError(t, err)
		assert.Equal(t, []string{"80pct", "90pct"}, labelsOf(fired))
	}
	assert.Equal(t, 0, store.Len(), "nothing is recorded for an invalid scope")
}

type failingStore struct {
	dedup.Store
	checkErr error
	markErr  error
}

func (f *failingStore) Check(ctx context.Context, key dedup.Key) (bool, error) {
	if f.checkErr != nil {
		return false, f.checkErr
	}
	return f.Store.Check(ctx, key)
}

func (f *failingStore) Mark(ctx context.Context, key dedup.Key) (bool, error) {
	if f.markErr != nil {
		return false, f.markErr
	}
	return f.Store.Mark(ctx, key)
}

func TestEvaluate_StoreErrors(t *testing.T) {
	boom := errors.New("store down")
	ctx := context.Background()

	eval := engine.NewEvaluator(&failingStore{Store: dedup.NewMemory(), checkErr: boom}, discardLogger())
	fired, err := eval.Evaluate(ctx, "limit:daily", "daily:2025-02-14", d("0.95"), engine.LimitLadder)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, fired)

	eval = engine.NewEvaluator(&failingStore{Store: dedup.NewMemory(), markErr: boom}, discardLogger())
	_, err = eval.Evaluate(ctx, "limit:daily", "daily:2025-02-14", d("0.95"), engine.LimitLadder)
	assert.ErrorIs(t, err, boom)
}

func TestEvaluate_ConcurrentCallersShareBreakpoints(t *testing.T) {
	store := dedup.NewMemory()
	ctx := context.Background()

	var mu sync.Mutex
	counts := map[string]int{}
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eval := engine.NewEvaluator(store, discardLogger())
			fired, err := eval.Evaluate(ctx, "goal:g1", "lifetime", d("1.2"), engine.GoalLadder)
			assert.NoError(t, err)
			mu.Lock()
			for _, bp := range fired {
				counts[bp.Label]++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	// Racing callers may see a higher mark first and skip lower labels, but
	// no label is ever returned twice.
	for label, n := range counts {
		assert.Equal(t, 1, n, label)
	}
	assert.Equal(t, 1, counts["completed"])
}

func TestEvaluator_Fired(t *testing.T) {
	eval := engine.NewEvaluator(dedup.NewMemory(), discardLogger())
	ctx := context.Background()

	_, err := eval.Evaluate(ctx, "limit:monthly", "monthly:2025-02", d("0.91"), engine.LimitLadder)
	require.NoError(t, err)

	fired, err := eval.Fired(ctx, "limit:monthly", "monthly:2025-02", engine.LimitLadder)
	require.NoError(t, err)
	assert.Equal(t, []string{"80pct", "90pct"}, fired)
}

func TestParsePolicy(t *testing.T) {
	p, err := engine.ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, engine.PolicyEach, p)

	p, err = engine.ParsePolicy("highest")
	require.NoError(t, err)
	assert.Equal(t, engine.PolicyHighest, p)

	_, err = engine.ParsePolicy("loudest")
	assert.Error(t, err)
}
