package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ogulcanaydogan/spend-guardian/pkg/alerts"
	"github.com/ogulcanaydogan/spend-guardian/pkg/clock"
	"github.com/ogulcanaydogan/spend-guardian/pkg/dedup"
	"github.com/ogulcanaydogan/spend-guardian/pkg/model"
	"github.com/ogulcanaydogan/spend-guardian/pkg/progress"
	"github.com/ogulcanaydogan/spend-guardian/pkg/storage"
	"github.com/shopspring/decimal"
)

const (
	goalScope     = "lifetime"
	deadlineScope = "deadline"
)

// GoalSubject returns the dedup subject holding a goal's markers.
func GoalSubject(goalID string) string {
	return "goal:" + goalID
}

// GoalChecker raises progress and deadline alerts for active goals. Goals
// never recur, so their markers live for the goal's whole lifetime.
type GoalChecker struct {
	store        storage.Storage
	markers      dedup.Store
	eval         *Evaluator
	clock        clock.Clock
	sink         alerts.Sink
	policy       Policy
	queryTimeout time.Duration
	logger       *slog.Logger
}

// Check evaluates every active goal and returns the number of alerts
// dispatched.
func (c *GoalChecker) Check(ctx context.Context) (int, error) {
	goals, err := c.activeGoals(ctx)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, goal := range goals {
		n, err := c.CheckGoal(ctx, goal)
		if err != nil {
			c.logger.Error("check goal", "goal", goal.ID, "error", err)
		}
		dispatched += n
	}
	return dispatched, nil
}

// CheckCategory evaluates the active goals tracking one category.
func (c *GoalChecker) CheckCategory(ctx context.Context, categoryID string) (int, error) {
	goals, err := c.activeGoals(ctx)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, goal := range goals {
		if goal.CategoryID != categoryID {
			continue
		}
		n, err := c.CheckGoal(ctx, goal)
		if err != nil {
			c.logger.Error("check goal", "goal", goal.ID, "error", err)
		}
		dispatched += n
	}
	return dispatched, nil
}

// CheckGoal evaluates one goal. A failed aggregate returns an error before
// anything is written.
func (c *GoalChecker) CheckGoal(ctx context.Context, goal model.Goal) (int, error) {
	snap, err := c.Snapshot(ctx, goal)
	if err != nil {
		return 0, err
	}

	if !snap.Aggregate.Equal(goal.CurrentAmount) {
		if err := c.store.UpdateGoalCurrentAmount(ctx, goal.ID, snap.Aggregate); err != nil {
			c.logger.Warn("store goal amount", "goal", goal.ID, "error", err)
		}
	}

	subject := GoalSubject(goal.ID)
	dispatched := 0
	var errs []error

	fired, err := c.eval.Evaluate(ctx, subject, goalScope, snap.Fraction, GoalLadder)
	if err != nil {
		errs = append(errs, fmt.Errorf("evaluate progress: %w", err))
	}

	// Zero days left means the deadline is today and the resolver takes over.
	var deadline []Breakpoint
	if snap.RemainingDays > 0 {
		deadline, err = c.eval.Evaluate(ctx, subject, deadlineScope,
			decimal.NewFromInt(int64(snap.RemainingDays)), DeadlineLadder)
		if err != nil {
			errs = append(errs, fmt.Errorf("evaluate deadline: %w", err))
		}
	}

	// A concurrent resolve or manual transition may have purged the goal
	// after it was listed. Its new markers are dropped and nothing is sent.
	if len(fired) > 0 || len(deadline) > 0 {
		active, err := c.stillActive(ctx, goal.ID)
		if err != nil {
			errs = append(errs, err)
		} else if !active {
			c.logger.Debug("goal left active during check", "goal", goal.ID)
			if err := c.Purge(ctx, goal.ID); err != nil {
				errs = append(errs, err)
			}
			return 0, errors.Join(errs...)
		}
	}

	for _, bp := range c.policy.apply(fired) {
		alert := alerts.GoalProgress(goal.ID, goal.Name, bp.Label, snap.Fraction, snap.Aggregate, goal.TargetAmount)
		if bp.Label == GoalReachedLabel {
			alert = alerts.GoalReached(goal.ID, goal.Name, snap.Fraction, snap.Aggregate, goal.TargetAmount)
		}
		c.logger.Info("goal breakpoint crossed", "goal", goal.ID, "label", bp.Label, "fraction", snap.Fraction.String())
		if err := c.sink.Dispatch(ctx, alert); err != nil {
			c.logger.Error("dispatch goal alert", "goal", goal.ID, "label", bp.Label, "error", err)
			continue
		}
		dispatched++
	}

	// One reminder per evaluation, for the most urgent label.
	if len(deadline) > 0 {
		bp := deadline[len(deadline)-1]
		alert := alerts.GoalDeadline(goal.ID, goal.Name, bp.Label, snap.RemainingDays, snap.RemainingAmount)
		c.logger.Info("goal deadline approaching", "goal", goal.ID, "label", bp.Label, "days", snap.RemainingDays)
		if err := c.sink.Dispatch(ctx, alert); err != nil {
			c.logger.Error("dispatch deadline alert", "goal", goal.ID, "label", bp.Label, "error", err)
		} else {
			dispatched++
		}
	}

	return dispatched, errors.Join(errs...)
}

// Snapshot computes the current progress of a goal from its spend over
// [StartAt, Deadline).
func (c *GoalChecker) Snapshot(ctx context.Context, goal model.Goal) (progress.Snapshot, error) {
	qctx, cancel := withQueryTimeout(ctx, c.queryTimeout)
	defer cancel()

	aggregate, err := c.store.CategorySpend(qctx, goal.CategoryID, goal.StartAt, goal.Deadline)
	if err != nil {
		return progress.Snapshot{}, fmt.Errorf("aggregate goal spend: %w", err)
	}
	return progress.Compute(goal, aggregate, c.clock.Now()), nil
}

// Fired reports which progress and deadline breakpoints a goal has used.
func (c *GoalChecker) Fired(ctx context.Context, goalID string) ([]string, error) {
	subject := GoalSubject(goalID)
	progressLabels, err := c.eval.Fired(ctx, subject, goalScope, GoalLadder)
	if err != nil {
		return nil, err
	}
	deadlineLabels, err := c.eval.Fired(ctx, subject, deadlineScope, DeadlineLadder)
	if err != nil {
		return nil, err
	}
	return append(progressLabels, deadlineLabels...), nil
}

// Purge removes every marker of a goal.
func (c *GoalChecker) Purge(ctx context.Context, goalID string) error {
	n, err := c.markers.ClearPrefix(ctx, dedup.SubjectPrefix(GoalSubject(goalID)))
	if err != nil {
		return fmt.Errorf("purge goal markers: %w", err)
	}
	c.logger.Debug("purged goal markers", "goal", goalID, "markers", n)
	return nil
}

// stillActive re-reads the goal state. A deleted goal is not active.
func (c *GoalChecker) stillActive(ctx context.Context, goalID string) (bool, error) {
	qctx, cancel := withQueryTimeout(ctx, c.queryTimeout)
	defer cancel()

	g, err := c.store.GetGoal(qctx, goalID)
	if errors.Is(err, model.ErrGoalNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reload goal: %w", err)
	}
	return g.State == model.StateActive, nil
}

func (c *GoalChecker) activeGoals(ctx context.Context) ([]model.Goal, error) {
	qctx, cancel := withQueryTimeout(ctx, c.queryTimeout)
	defer cancel()

	goals, err := c.store.ActiveGoals(qctx)
	if err != nil {
		return nil, fmt.Errorf("list active goals: %w", err)
	}
	return goals, nil
}
