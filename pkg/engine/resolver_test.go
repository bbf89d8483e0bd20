package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ogulcanaydogan/spend-guardian/pkg/alerts"
	"github.com/ogulcanaydogan/spend-guardian/pkg/dedup"
	"github.com/ogulcanaydogan/spend-guardian/pkg/engine"
	"github.com/ogulcanaydogan/spend-guardian/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_CompletesAndFails(t *testing.T) {
	h := newHarness(t, noLimits())
	ctx := context.Background()

	evening := friday.Add(8 * time.Hour)
	over := createGoal(t, h, "Dining", "dining", "100", evening)
	under := createGoal(t, h, "Fuel", "fuel", "100", evening)
	exact := createGoal(t, h, "Rent", "rent", "100", evening)
	later := createGoal(t, h, "Books", "books", "100", friday.Add(24*time.Hour))

	h.rawSpend(t, "dining", "130", friday.Add(-48*time.Hour))
	h.rawSpend(t, "fuel", "50", friday.Add(-48*time.Hour))
	h.rawSpend(t, "rent", "100", friday.Add(-48*time.Hour))

	h.clock.Set(evening.Add(time.Hour))
	res, err := h.engine.Resolve(ctx)
	require.NoError(t, err)
	require.Len(t, res.Failed, 1)
	require.Len(t, res.Completed, 2)
	assert.Equal(t, over.ID, res.Failed[0].Goal.ID)
	assert.Equal(t, model.StateFailed, res.Failed[0].Goal.State)

	for id, want := range map[string]model.GoalState{
		over.ID:  model.StateFailed,
		under.ID: model.StateCompleted,
		exact.ID: model.StateCompleted,
		later.ID: model.StateActive,
	} {
		g, err := h.store.GetGoal(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, g.State, g.Name)
	}

	got := h.sink.Alerts()
	require.Len(t, got, 2, "one summary per terminal state")
	assert.Equal(t, alerts.KindGoalCompleted, got[0].Kind)
	assert.Equal(t, "1 goal failed", got[0].Title)
	assert.Equal(t, "Dining (130%)", got[0].Message)
	assert.Equal(t, "2 goals completed", got[1].Title)
	assert.Len(t, got[1].Items, 2)
}

func TestResolver_WaitsForDeadline(t *testing.T) {
	h := newHarness(t, noLimits())
	ctx := context.Background()

	deadline := friday.Add(8 * time.Hour)
	goal := createGoal(t, h, "Dining", "dining", "100", deadline)
	h.rawSpend(t, "dining", "50", friday.Add(-time.Hour))

	res, err := h.engine.Resolve(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Completed, "deadline still hours away")
	assert.Empty(t, res.Failed)

	h.rawSpend(t, "dining", "80", friday.Add(2*time.Hour))

	h.clock.Set(deadline.Add(time.Minute))
	res, err = h.engine.Resolve(ctx)
	require.NoError(t, err)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "1.3", res.Failed[0].Fraction.String())

	g, err := h.store.GetGoal(ctx, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateFailed, g.State)
}

func TestResolver_DeadlineAfterDailyRun(t *testing.T) {
	h := newHarness(t, noLimits())
	ctx := context.Background()

	// Due at 23:00, after the 10:00 run; the next morning's run resolves it.
	createGoal(t, h, "Fuel", "fuel", "100", friday.Add(13*time.Hour))

	res, err := h.engine.Resolve(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Completed)

	h.clock.Advance(24 * time.Hour)
	res, err = h.engine.Resolve(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Completed, 1)
}

func TestResolver_TerminalIdempotence(t *testing.T) {
	h := newHarness(t, noLimits())
	ctx := context.Background()
	createGoal(t, h, "Fuel", "fuel", "100", friday.Add(-time.Hour))

	res, err := h.engine.Resolve(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Completed, 1)

	res, err = h.engine.Resolve(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Completed)
	assert.Empty(t, res.Failed)
	assert.Len(t, h.sink.Alerts(), 1)
}

func TestResolver_ConcurrentRunsTransitionOnce(t *testing.T) {
	h := newHarness(t, noLimits())
	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		createGoal(t, h, name, name, "100", friday.Add(-time.Hour))
	}

	var mu sync.Mutex
	total := 0
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.engine.Resolve(ctx)
			assert.NoError(t, err)
			mu.Lock()
			total += len(res.Completed) + len(res.Failed)
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, total)
}

func TestResolver_PurgesMarkers(t *testing.T) {
	h := newHarness(t, noLimits())
	ctx := context.Background()
	goal := createGoal(t, h, "Dining", "dining", "100", friday.Add(time.Hour))
	h.rawSpend(t, "dining", "60", friday.Add(-time.Hour))

	_, err := h.engine.CheckGoals(ctx)
	require.NoError(t, err)
	key := dedup.Key{Subject: engine.GoalSubject(goal.ID), Condition: "50pct", Scope: "lifetime"}
	seen, err := h.markers.Check(ctx, key)
	require.NoError(t, err)
	require.True(t, seen)

	h.clock.Advance(2 * time.Hour)
	_, err = h.engine.Resolve(ctx)
	require.NoError(t, err)
	seen, err = h.markers.Check(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestResolver_Overdue(t *testing.T) {
	ctx := context.Background()

	h := newHarness(t, noLimits())
	createGoal(t, h, "Old", "old", "100", friday.Add(-36*time.Hour))
	res, err := h.engine.Resolve(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Completed, "only goals due since yesterday by default")

	h = newHarness(t, engine.Options{Limits: engine.Limits{}, ResolveOverdue: true})
	createGoal(t, h, "Old", "old", "100", friday.Add(-36*time.Hour))
	res, err = h.engine.Resolve(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Completed, 1)
}

func TestResolver_NoDueGoals(t *testing.T) {
	h := newHarness(t, noLimits())
	res, err := h.engine.Resolve(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Completed)
	assert.Empty(t, res.Failed)
	assert.Empty(t, h.sink.Alerts())
}
