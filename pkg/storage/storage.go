package storage

import (
	"context"
	"time"

	"github.com/ogulcanaydogan/spend-guardian/pkg/model"
	"github.com/shopspring/decimal"
)

// Storage is the persistence layer for goals, transactions and activity.
type Storage interface {
	// CreateGoal persists a new goal in the Active state.
	CreateGoal(ctx context.Context, goal *model.Goal) error

	// GetGoal retrieves a goal by ID.
	GetGoal(ctx context.Context, id string) (*model.Goal, error)

	// ListGoals returns goals in the given state, or all goals when state is empty.
	ListGoals(ctx context.Context, state model.GoalState) ([]model.Goal, error)

	// DeleteGoal removes a goal.
	DeleteGoal(ctx context.Context, id string) error

	// ActiveGoals returns every goal in the Active state.
	ActiveGoals(ctx context.Context) ([]model.Goal, error)

	// GoalsDueBetween returns Active goals whose deadline is in [from, through].
	GoalsDueBetween(ctx context.Context, from, through time.Time) ([]model.Goal, error)

	// UpdateGoalState moves an Active goal into state. It reports false when
	// the goal was no longer Active, so a transition happens at most once.
	UpdateGoalState(ctx context.Context, id string, state model.GoalState) (bool, error)

	// UpdateGoalCurrentAmount stores the latest computed aggregate for a goal.
	UpdateGoalCurrentAmount(ctx context.Context, id string, amount decimal.Decimal) error

	// RecordTransaction persists a transaction.
	RecordTransaction(ctx context.Context, txn *model.Transaction) error

	// CategorySpend sums expenses of one category in [start, end).
	CategorySpend(ctx context.Context, categoryID string, start, end time.Time) (decimal.Decimal, error)

	// TotalSpend sums expenses of every category in [start, end).
	TotalSpend(ctx context.Context, start, end time.Time) (decimal.Decimal, error)

	// LastActivity returns the last recorded user activity, if any.
	LastActivity(ctx context.Context) (time.Time, bool, error)

	// RecordActivity stores a user activity timestamp. Older timestamps never
	// replace newer ones.
	RecordActivity(ctx context.Context, at time.Time) error

	// Close releases resources.
	Close() error
}
