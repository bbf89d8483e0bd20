package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ogulcanaydogan/spend-guardian/pkg/alerts"
	"github.com/ogulcanaydogan/spend-guardian/pkg/clock"
	"github.com/ogulcanaydogan/spend-guardian/pkg/model"
	"github.com/ogulcanaydogan/spend-guardian/pkg/period"
	"github.com/ogulcanaydogan/spend-guardian/pkg/progress"
	"github.com/ogulcanaydogan/spend-guardian/pkg/storage"
	"github.com/shopspring/decimal"
)

// Resolution is the outcome of one resolver run.
type Resolution struct {
	Completed []progress.Snapshot `json:"completed"`
	Failed    []progress.Snapshot `json:"failed"`
}

// Resolver moves goals whose deadline has passed into a terminal state.
// Spending above the target fails the goal, anything else completes it.
type Resolver struct {
	store   storage.Storage
	goals   *GoalChecker
	clock   clock.Clock
	sink    alerts.Sink
	overdue bool
	logger  *slog.Logger
}

// Run resolves the goals whose deadline passed since the start of
// yesterday, so a deadline later in the day than one run is picked up by
// the next. A goal is never resolved before its deadline. The state change
// is stored before any summary is dispatched, and a goal already resolved
// by a concurrent run is left out of the summaries.
func (r *Resolver) Run(ctx context.Context) (Resolution, error) {
	var res Resolution

	now := r.clock.Now()
	dayStart, _ := period.Bounds(now, period.Daily)
	from := dayStart.AddDate(0, 0, -1)
	if r.overdue {
		from = time.UnixMilli(0)
	}
	due, err := r.store.GoalsDueBetween(ctx, from, now)
	if err != nil {
		return res, fmt.Errorf("list due goals: %w", err)
	}

	for _, goal := range due {
		snap, err := r.goals.Snapshot(ctx, goal)
		if err != nil {
			r.logger.Error("resolve goal", "goal", goal.ID, "error", err)
			continue
		}

		state := model.StateCompleted
		if snap.Fraction.GreaterThan(decimal.NewFromInt(1)) {
			state = model.StateFailed
		}

		if err := r.store.UpdateGoalCurrentAmount(ctx, goal.ID, snap.Aggregate); err != nil {
			r.logger.Warn("store goal amount", "goal", goal.ID, "error", err)
		}
		moved, err := r.store.UpdateGoalState(ctx, goal.ID, state)
		if err != nil {
			r.logger.Error("update goal state", "goal", goal.ID, "state", string(state), "error", err)
			continue
		}
		if !moved {
			r.logger.Debug("goal already resolved", "goal", goal.ID)
			continue
		}
		snap.Goal.State = state
		r.logger.Info("goal resolved", "goal", goal.ID, "state", string(state), "fraction", snap.Fraction.String())

		if err := r.goals.Purge(ctx, goal.ID); err != nil {
			r.logger.Warn("purge resolved goal", "goal", goal.ID, "error", err)
		}

		if state == model.StateFailed {
			res.Failed = append(res.Failed, snap)
		} else {
			res.Completed = append(res.Completed, snap)
		}
	}

	r.summarize(ctx, model.StateFailed, res.Failed)
	r.summarize(ctx, model.StateCompleted, res.Completed)
	return res, nil
}

func (r *Resolver) summarize(ctx context.Context, state model.GoalState, snaps []progress.Snapshot) {
	if len(snaps) == 0 {
		return
	}
	items := make([]alerts.Item, 0, len(snaps))
	for _, s := range snaps {
		items = append(items, alerts.Item{
			SubjectID: s.Goal.ID,
			Name:      s.Goal.Name,
			Detail:    fmt.Sprintf("%d%%", s.Percent()),
		})
	}
	if err := r.sink.Dispatch(ctx, alerts.GoalSummary(string(state), items)); err != nil {
		r.logger.Error("dispatch goal summary", "state", string(state), "goals", len(items), "error", err)
	}
}
