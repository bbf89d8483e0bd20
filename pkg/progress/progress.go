// Package progress turns a goal and its spend aggregate into a snapshot.
package progress

import (
	"time"

	"github.com/ogulcanaydogan/spend-guardian/pkg/model"
	"github.com/ogulcanaydogan/spend-guardian/pkg/period"
	"github.com/shopspring/decimal"
)

// Snapshot is the computed state of a goal at one instant.
type Snapshot struct {
	Goal            model.Goal      `json:"goal" yaml:"goal"`
	Aggregate       decimal.Decimal `json:"aggregate" yaml:"aggregate"`
	Fraction        decimal.Decimal `json:"fraction" yaml:"fraction"`
	RemainingAmount decimal.Decimal `json:"remaining_amount" yaml:"remaining_amount"`
	RemainingDays   int             `json:"remaining_days" yaml:"remaining_days"`
}

// Compute derives progress from the spend aggregate. The fraction is
// unbounded above so overspend stays visible. A non-positive target yields
// a zero fraction rather than a division error.
func Compute(goal model.Goal, aggregate decimal.Decimal, now time.Time) Snapshot {
	fraction := decimal.Zero
	if goal.TargetAmount.IsPositive() {
		fraction = aggregate.Div(goal.TargetAmount)
	}

	remaining := goal.TargetAmount.Sub(aggregate)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	days := 0
	if goal.Deadline.After(now) {
		days = period.DaysBetween(now, goal.Deadline)
	}

	return Snapshot{
		Goal:            goal,
		Aggregate:       aggregate,
		Fraction:        fraction,
		RemainingAmount: remaining,
		RemainingDays:   days,
	}
}

// Percent returns the fraction as a whole-number percentage, rounded down.
func (s Snapshot) Percent() int64 {
	return s.Fraction.Mul(decimal.NewFromInt(100)).Floor().IntPart()
}
