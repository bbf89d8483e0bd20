package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GoalState is the lifecycle state of a goal.
type GoalState string

const (
	StateActive    GoalState = "active"
	StateCompleted GoalState = "completed"
	StateCancelled GoalState = "cancelled"
	StateFailed    GoalState = "failed"
)

// ParseGoalState validates a state name.
func ParseGoalState(s string) (GoalState, error) {
	switch GoalState(s) {
	case StateActive, StateCompleted, StateCancelled, StateFailed:
		return GoalState(s), nil
	}
	return "", fmt.Errorf("unknown goal state %q", s)
}

// Terminal reports whether no further transitions are allowed.
func (s GoalState) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// CanTransition reports whether s may move to next. Only Active goals move,
// and only into a terminal state.
func (s GoalState) CanTransition(next GoalState) bool {
	return s == StateActive && next.Terminal()
}

// Goal is a commitment to stay within a monetary amount for a category over
// a time window. CurrentAmount is a snapshot of the last computed aggregate,
// never ground truth.
type Goal struct {
	ID            string          `json:"id" yaml:"id" db:"id"`
	Name          string          `json:"name" yaml:"name" db:"name"`
	CategoryID    string          `json:"category_id" yaml:"category_id" db:"category_id"`
	TargetAmount  decimal.Decimal `json:"target_amount" yaml:"target_amount" db:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount" yaml:"current_amount" db:"current_amount"`
	StartAt       time.Time       `json:"start_at" yaml:"start_at" db:"start_at"`
	Deadline      time.Time       `json:"deadline" yaml:"deadline" db:"deadline"`
	Note          string          `json:"note,omitempty" yaml:"note,omitempty" db:"note"`
	State         GoalState       `json:"state" yaml:"state" db:"state"`
	CreatedAt     time.Time       `json:"created_at" yaml:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" yaml:"updated_at" db:"updated_at"`
}

// Validate checks the invariants enforced when a goal is created.
func (g *Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidGoal)
	}
	if strings.TrimSpace(g.CategoryID) == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidGoal)
	}
	if !g.TargetAmount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidTarget, g.TargetAmount)
	}
	if !g.Deadline.After(g.StartAt) {
		return fmt.Errorf("%w: deadline must be after start", ErrInvalidGoal)
	}
	return nil
}

// TransactionKind distinguishes spending from income.
type TransactionKind string

const (
	KindExpense TransactionKind = "expense"
	KindIncome  TransactionKind = "income"
)

// Transaction is a single money movement. Only expenses count toward spend.
type Transaction struct {
	ID         string          `json:"id" db:"id"`
	CategoryID string          `json:"category_id" db:"category_id"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Kind       TransactionKind `json:"kind" db:"kind"`
	Note       string          `json:"note,omitempty" db:"note"`
	OccurredAt time.Time       `json:"occurred_at" db:"occurred_at"`
}
