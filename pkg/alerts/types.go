package alerts

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies what an alert is about.
type Kind string

const (
	KindSpendLimit    Kind = "spend_limit"
	KindGoalProgress  Kind = "goal_progress"
	KindGoalCompleted Kind = "goal_completed"
	KindGoalDeadline  Kind = "goal_deadline"
	KindInactivity    Kind = "inactivity"
)

// Level indicates the severity of an alert.
type Level string

const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"  // Approaching a limit or deadline
	LevelCritical Level = "critical" // At or near a limit
	LevelExceeded Level = "exceeded" // Limit or goal target exceeded
)

// Payload carries the condition that fired: the breakpoint label, the
// observed value and what the value was measured against.
type Payload struct {
	Label       string          `json:"label"`
	Value       decimal.Decimal `json:"value"`
	TargetLabel string          `json:"target_label"`
}

// Item is one line of a batch alert, such as a goal in a resolver summary.
type Item struct {
	SubjectID string `json:"subject_id"`
	Name      string `json:"name"`
	Detail    string `json:"detail"`
}

// Alert is a single user-visible notification.
type Alert struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Level     Level     `json:"level"`
	SubjectID string    `json:"subject_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Payload   Payload   `json:"payload"`
	Items     []Item    `json:"items,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Sink is where the engine hands off alerts for delivery.
type Sink interface {
	Dispatch(ctx context.Context, alert Alert) error
}

// Notifier sends alerts to external systems.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Send delivers an alert. Implementations must be safe for concurrent use.
	Send(ctx context.Context, alert Alert) error
}
