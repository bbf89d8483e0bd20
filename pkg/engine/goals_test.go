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
	"github.com/ogulcanaydogan/spend-guardian/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createGoal(t *testing.T, h *harness, name, category, target string, deadline time.Time) *model.Goal {
	t.Helper()
	goal := &model.Goal{
		Name:         name,
		CategoryID:   category,
		TargetAmount: decimal.RequireFromString(target),
		StartAt:      time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Deadline:     deadline,
	}
	require.NoError(t, h.store.CreateGoal(context.Background(), goal))
	return goal
}

func TestGoals_ProgressScenario(t *testing.T) {
	h := newHarness(t, noLimits())
	goal := createGoal(t, h, "Groceries", "groceries", "500", friday.Add(2*24*time.Hour+time.Hour))
	h.rawSpend(t, "groceries", "460", friday.Add(-24*time.Hour))

	res, err := h.engine.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Goals)
	assert.Equal(t, []string{"50pct", "75pct", "90pct"}, h.labels(alerts.KindGoalProgress))
	assert.Equal(t, []string{"deadline_2"}, h.labels(alerts.KindGoalDeadline))

	for _, a := range h.sink.Alerts() {
		assert.Equal(t, goal.ID, a.SubjectID)
	}

	h.sink.Reset()
	res, err = h.engine.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Goals)
	assert.Empty(t, h.sink.Alerts())
}

func TestGoals_IgnoresSpendOutsideWindow(t *testing.T) {
	h := newHarness(t, noLimits())
	createGoal(t, h, "Groceries", "groceries", "100", friday.Add(10*24*time.Hour))

	h.rawSpend(t, "groceries", "500", time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC))
	h.rawSpend(t, "dining", "500", friday)

	res, err := h.engine.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Goals)
}

func TestGoals_TransactionChecksItsCategory(t *testing.T) {
	h := newHarness(t, noLimits())
	createGoal(t, h, "Groceries", "groceries", "100", friday.Add(10*24*time.Hour))
	createGoal(t, h, "Dining", "dining", "100", friday.Add(10*24*time.Hour))
	h.rawSpend(t, "dining", "80", friday.Add(-time.Hour))

	res, err := h.engine.OnTransaction(context.Background(), &model.Transaction{
		CategoryID: "groceries",
		Amount:     decimal.NewFromInt(55),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Goals, "only the groceries goal is evaluated")
	assert.Equal(t, []string{"50pct"}, h.labels(alerts.KindGoalProgress))
}

func TestGoals_DeadlineCountdown(t *testing.T) {
	h := newHarness(t, noLimits())
	ctx := context.Background()
	createGoal(t, h, "Fuel", "fuel", "100", friday.Add(4*24*time.Hour+time.Hour))

	var labels []string
	for day := 0; day < 5; day++ {
		h.sink.Reset()
		_, err := h.engine.CheckGoals(ctx)
		require.NoError(t, err)
		labels = append(labels, h.labels(alerts.KindGoalDeadline)...)
		h.clock.Advance(24 * time.Hour)
	}
	assert.Equal(t, []string{"deadline_3", "deadline_2", "deadline_1"}, labels)
}

func TestGoals_OverspendFiresFullLadder(t *testing.T) {
	h := newHarness(t, noLimits())
	createGoal(t, h, "Dining", "dining", "100", friday.Add(20*24*time.Hour))
	h.rawSpend(t, "dining", "130", friday)

	_, err := h.engine.CheckGoals(context.Background())
	require.NoError(t, err)

	got := h.labels(alerts.KindGoalProgress)
	assert.Equal(t, []string{"50pct", "75pct", "90pct", "completed"}, got)
	last := h.sink.Alerts()[3]
	assert.Equal(t, alerts.LevelExceeded, last.Level)
	assert.Equal(t, "1.3", last.Payload.Value.String())
	assert.Equal(t, `Goal "Dining" reached its target`, last.Title)
	assert.Contains(t, last.Message, "over its target by 30.00")
}

func TestGoals_HighestPolicy(t *testing.T) {
	h := newHarness(t, engine.Options{Limits: engine.Limits{}, Policy: engine.PolicyHighest})
	createGoal(t, h, "Dining", "dining", "100", friday.Add(20*24*time.Hour))
	h.rawSpend(t, "dining", "92", friday)

	_, err := h.engine.CheckGoals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"90pct"}, h.labels(alerts.KindGoalProgress))
}

func TestGoals_Restart(t *testing.T) {
	h := newHarness(t, noLimits())
	ctx := context.Background()
	createGoal(t, h, "Dining", "dining", "100", friday.Add(20*24*time.Hour))
	h.rawSpend(t, "dining", "60", friday)

	_, err := h.engine.CheckGoals(ctx)
	require.NoError(t, err)
	require.Len(t, h.sink.Alerts(), 1)

	// A fresh engine over the same database starts from persisted markers.
	restarted := newHarnessWithStore(t, h.store, h.store, noLimits())
	n, err := restarted.engine.CheckGoals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, restarted.sink.Alerts())
}

// transitionOnSpend runs hook once, right after the first category
// aggregate is read, as a concurrent transition would.
type transitionOnSpend struct {
	storage.Storage
	once sync.Once
	hook func(ctx context.Context)
}

func (s *transitionOnSpend) CategorySpend(ctx context.Context, categoryID string, start, end time.Time) (decimal.Decimal, error) {
	total, err := s.Storage.CategorySpend(ctx, categoryID, start, end)
	s.once.Do(func() { s.hook(ctx) })
	return total, err
}

func TestGoals_TransitionDuringCheck(t *testing.T) {
	tests := []struct {
		name   string
		action func(e *engine.Engine, ctx context.Context, id string) error
	}{
		{"cancel", (*engine.Engine).CancelGoal},
		{"complete", (*engine.Engine).CompleteGoal},
		{"delete", (*engine.Engine).DeleteGoal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := newHarness(t, noLimits())
			racing := &transitionOnSpend{Storage: base.store}
			h := newHarnessWithStore(t, base.store, racing, noLimits())
			ctx := context.Background()

			goal := createGoal(t, h, "Dining", "dining", "100", friday.Add(2*24*time.Hour+time.Hour))
			h.rawSpend(t, "dining", "95", friday)
			racing.hook = func(ctx context.Context) {
				require.NoError(t, tt.action(h.engine, ctx, goal.ID))
			}

			n, err := h.engine.CheckGoals(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, n)
			assert.Empty(t, h.sink.Alerts())

			for _, key := range []dedup.Key{
				{Subject: engine.GoalSubject(goal.ID), Condition: "50pct", Scope: "lifetime"},
				{Subject: engine.GoalSubject(goal.ID), Condition: "90pct", Scope: "lifetime"},
				{Subject: engine.GoalSubject(goal.ID), Condition: "deadline_2", Scope: "deadline"},
			} {
				seen, err := h.markers.Check(ctx, key)
				require.NoError(t, err)
				assert.False(t, seen, key.String())
			}
		})
	}
}
