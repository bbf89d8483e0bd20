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
)

// Options tune an Engine.
type Options struct {
	// Limits holds the per-period spending limits. Nil selects DefaultLimits.
	Limits Limits

	// Policy decides how several breakpoints fired at once are notified.
	Policy Policy

	// QueryTimeout bounds each aggregate read. Zero means no bound.
	QueryTimeout time.Duration

	// ResolveOverdue makes the resolver also pick up active goals whose
	// deadline passed before yesterday, such as after downtime.
	ResolveOverdue bool
}

// Engine wires the checkers together over one store, marker store, clock
// and sink.
type Engine struct {
	store      storage.Storage
	clock      clock.Clock
	limits     *LimitChecker
	goals      *GoalChecker
	inactivity *InactivityTracker
	resolver   *Resolver
	logger     *slog.Logger
}

// TickResult counts the alerts dispatched by one tick.
type TickResult struct {
	Limits     int    `json:"limits"`
	Goals      int    `json:"goals"`
	Inactivity string `json:"inactivity,omitempty"`
}

// New creates an engine.
func New(store storage.Storage, markers dedup.Store, clk clock.Clock, sink alerts.Sink, logger *slog.Logger, opts Options) *Engine {
	if opts.Limits == nil {
		opts.Limits = DefaultLimits()
	}
	if opts.Policy == "" {
		opts.Policy = PolicyEach
	}

	eval := NewEvaluator(markers, logger)
	goals := &GoalChecker{
		store:        store,
		markers:      markers,
		eval:         eval,
		clock:        clk,
		sink:         sink,
		policy:       opts.Policy,
		queryTimeout: opts.QueryTimeout,
		logger:       logger.With("component", "goals"),
	}

	return &Engine{
		store: store,
		clock: clk,
		limits: &LimitChecker{
			store:        store,
			markers:      markers,
			eval:         eval,
			clock:        clk,
			sink:         sink,
			limits:       opts.Limits,
			policy:       opts.Policy,
			queryTimeout: opts.QueryTimeout,
			logger:       logger.With("component", "limits"),
		},
		goals: goals,
		inactivity: &InactivityTracker{
			store:   store,
			markers: markers,
			clock:   clk,
			sink:    sink,
			logger:  logger.With("component", "inactivity"),
		},
		resolver: &Resolver{
			store:   store,
			goals:   goals,
			clock:   clk,
			sink:    sink,
			overdue: opts.ResolveOverdue,
			logger:  logger.With("component", "resolver"),
		},
		logger: logger,
	}
}

// Tick runs one full evaluation: spending limits, active goals and
// inactivity. Failures in one part never stop the others.
func (e *Engine) Tick(ctx context.Context) (TickResult, error) {
	var res TickResult
	var errs []error

	res.Limits = e.limits.Check(ctx)

	n, err := e.goals.Check(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	res.Goals = n

	label, err := e.inactivity.Check(ctx)
	if err != nil {
		e.logger.Error("check inactivity", "error", err)
		errs = append(errs, err)
	}
	res.Inactivity = label

	e.logger.Debug("tick complete", "limits", res.Limits, "goals", res.Goals, "inactivity", res.Inactivity)
	return res, errors.Join(errs...)
}

// CheckGoals evaluates active goals only.
func (e *Engine) CheckGoals(ctx context.Context) (int, error) {
	return e.goals.Check(ctx)
}

// Resolve runs the goal lifecycle resolver.
func (e *Engine) Resolve(ctx context.Context) (Resolution, error) {
	return e.resolver.Run(ctx)
}

// RecordActivity records user activity at the given time, or now when at
// is zero, starting a new inactivity episode.
func (e *Engine) RecordActivity(ctx context.Context, at time.Time) error {
	if at.IsZero() {
		at = e.clock.Now()
	}
	return e.inactivity.RecordActivity(ctx, at)
}

// OnTransaction stores a transaction, counts it as activity and
// re-evaluates the limits and the goals of its category. Only a failure to
// store the transaction is returned; evaluation failures are logged.
func (e *Engine) OnTransaction(ctx context.Context, txn *model.Transaction) (TickResult, error) {
	var res TickResult
	if txn.OccurredAt.IsZero() {
		txn.OccurredAt = e.clock.Now()
	}
	if err := e.store.RecordTransaction(ctx, txn); err != nil {
		return res, fmt.Errorf("record transaction: %w", err)
	}
	if err := e.RecordActivity(ctx, time.Time{}); err != nil {
		e.logger.Warn("record activity", "error", err)
	}
	if txn.Kind != model.KindExpense {
		return res, nil
	}

	res.Limits = e.limits.Check(ctx)
	n, err := e.goals.CheckCategory(ctx, txn.CategoryID)
	if err != nil {
		e.logger.Error("check goals after transaction", "category", txn.CategoryID, "error", err)
	}
	res.Goals = n
	return res, nil
}

// OnGoalCreated stores a new goal and evaluates it immediately, so spend
// already recorded for its window is reflected at once. Evaluation
// failures are logged, not returned.
func (e *Engine) OnGoalCreated(ctx context.Context, goal *model.Goal) (int, error) {
	if goal.StartAt.IsZero() {
		goal.StartAt = e.clock.Now()
	}
	if err := e.store.CreateGoal(ctx, goal); err != nil {
		return 0, fmt.Errorf("create goal: %w", err)
	}
	n, err := e.goals.CheckGoal(ctx, *goal)
	if err != nil {
		e.logger.Error("check new goal", "goal", goal.ID, "error", err)
	}
	return n, nil
}

// CompleteGoal marks an active goal completed ahead of its deadline.
func (e *Engine) CompleteGoal(ctx context.Context, id string) error {
	return e.transition(ctx, id, model.StateCompleted)
}

// CancelGoal abandons an active goal.
func (e *Engine) CancelGoal(ctx context.Context, id string) error {
	return e.transition(ctx, id, model.StateCancelled)
}

// DeleteGoal removes a goal and its markers.
func (e *Engine) DeleteGoal(ctx context.Context, id string) error {
	if err := e.store.DeleteGoal(ctx, id); err != nil {
		return err
	}
	return e.goals.Purge(ctx, id)
}

func (e *Engine) transition(ctx context.Context, id string, state model.GoalState) error {
	goal, err := e.store.GetGoal(ctx, id)
	if err != nil {
		return err
	}
	if !goal.State.CanTransition(state) {
		return fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, goal.State, state)
	}
	moved, err := e.store.UpdateGoalState(ctx, id, state)
	if err != nil {
		return err
	}
	if !moved {
		return fmt.Errorf("%w: goal %s is no longer active", model.ErrInvalidTransition, id)
	}
	e.logger.Info("goal state changed", "goal", id, "state", string(state))
	return e.goals.Purge(ctx, id)
}

// GoalReport is a goal with its live progress and fired breakpoints.
type GoalReport struct {
	progress.Snapshot `yaml:",inline"`
	Fired             []string `json:"fired" yaml:"fired"`
}

// Goals reports progress for goals in the given state, or all goals when
// state is empty.
func (e *Engine) Goals(ctx context.Context, state model.GoalState) ([]GoalReport, error) {
	goals, err := e.store.ListGoals(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	out := make([]GoalReport, 0, len(goals))
	for _, g := range goals {
		snap, err := e.goals.Snapshot(ctx, g)
		if err != nil {
			return nil, err
		}
		fired, err := e.goals.Fired(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, GoalReport{Snapshot: snap, Fired: fired})
	}
	return out, nil
}

// LimitStatus reports spend against each enabled limit.
func (e *Engine) LimitStatus(ctx context.Context) ([]LimitStatus, error) {
	return e.limits.Status(ctx)
}

// InactivityStatus reports the current inactivity episode.
func (e *Engine) InactivityStatus(ctx context.Context) (InactivityStatus, error) {
	return e.inactivity.Status(ctx)
}
