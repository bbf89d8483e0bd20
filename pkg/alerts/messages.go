package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SpendLimit builds the alert for a crossed per-period spending breakpoint.
func SpendLimit(periodKind, periodKey, label string, spent, limit decimal.Decimal) Alert {
	pct := decimal.Zero
	if limit.IsPositive() {
		pct = spent.Div(limit).Mul(hundred)
	}

	level := LevelWarning
	switch {
	case pct.GreaterThanOrEqual(hundred):
		level = LevelExceeded
	case pct.GreaterThanOrEqual(decimal.NewFromInt(90)):
		level = LevelCritical
	}

	msg := fmt.Sprintf("You have spent %s%% of your %s limit (%s of %s).",
		pct.StringFixed(0), periodKind, spent.StringFixed(2), limit.StringFixed(2))
	if level == LevelExceeded {
		msg = fmt.Sprintf("You have exceeded your %s limit of %s. Current spend: %s.",
			periodKind, limit.StringFixed(2), spent.StringFixed(2))
	}

	return Alert{
		Kind:      KindSpendLimit,
		Level:     level,
		SubjectID: "limit:" + periodKind,
		Title:     fmt.Sprintf("%s spending limit %s", titleCase(periodKind), label),
		Message:   msg,
		Payload:   Payload{Label: label, Value: spent, TargetLabel: periodKind + ":" + periodKey},
	}
}

// GoalProgress builds the alert for a crossed goal progress breakpoint.
func GoalProgress(goalID, goalName, label string, fraction, aggregate, target decimal.Decimal) Alert {
	pct := fraction.Mul(hundred)
	level := LevelInfo
	switch {
	case pct.GreaterThanOrEqual(hundred):
		level = LevelExceeded
	case pct.GreaterThanOrEqual(decimal.NewFromInt(90)):
		level = LevelCritical
	case pct.GreaterThanOrEqual(decimal.NewFromInt(75)):
		level = LevelWarning
	}

	return Alert{
		Kind:      KindGoalProgress,
		Level:     level,
		SubjectID: goalID,
		Title:     fmt.Sprintf("Goal %q at %s", goalName, label),
		Message: fmt.Sprintf("%q has used %s%% of its target (%s of %s).",
			goalName, pct.StringFixed(0), aggregate.StringFixed(2), target.StringFixed(2)),
		Payload: Payload{Label: label, Value: fraction, TargetLabel: target.String()},
	}
}

// GoalReached builds the alert sent once when spend reaches the whole
// target of a goal.
func GoalReached(goalID, goalName string, fraction, aggregate, target decimal.Decimal) Alert {
	a := GoalProgress(goalID, goalName, "completed", fraction, aggregate, target)
	a.Title = fmt.Sprintf("Goal %q reached its target", goalName)
	if aggregate.GreaterThan(target) {
		a.Message = fmt.Sprintf("%q is over its target by %s (%s of %s).",
			goalName, aggregate.Sub(target).StringFixed(2), aggregate.StringFixed(2), target.StringFixed(2))
	} else {
		a.Message = fmt.Sprintf("%q has spent its whole target of %s.", goalName, target.StringFixed(2))
	}
	return a
}

// GoalDeadline builds the alert for an approaching goal deadline.
func GoalDeadline(goalID, goalName, label string, remainingDays int, remaining decimal.Decimal) Alert {
	unit := "days"
	if remainingDays == 1 {
		unit = "day"
	}
	return Alert{
		Kind:      KindGoalDeadline,
		Level:     LevelWarning,
		SubjectID: goalID,
		Title:     fmt.Sprintf("Goal %q ends in %d %s", goalName, remainingDays, unit),
		Message: fmt.Sprintf("%q ends in %d %s with %s left to spend.",
			goalName, remainingDays, unit, remaining.StringFixed(2)),
		Payload: Payload{Label: label, Value: decimal.NewFromInt(int64(remainingDays)), TargetLabel: "days"},
	}
}

// Inactivity builds the reminder sent when no activity has been recorded.
func Inactivity(label string, threshold, elapsed time.Duration) Alert {
	return Alert{
		Kind:      KindInactivity,
		Level:     LevelInfo,
		SubjectID: "inactivity",
		Title:     "We miss you",
		Message: fmt.Sprintf("No expenses recorded in the last %s. Keep your budget up to date.",
			humanDuration(threshold)),
		Payload: Payload{
			Label:       label,
			Value:       decimal.NewFromFloat(elapsed.Seconds()).Round(0),
			TargetLabel: "seconds",
		},
	}
}

// GoalSummary builds one batch alert for goals that reached the same
// terminal state during a resolver run.
func GoalSummary(state string, items []Item) Alert {
	noun := "goals"
	if len(items) == 1 {
		noun = "goal"
	}

	level := LevelInfo
	title := fmt.Sprintf("%d %s completed", len(items), noun)
	if state == "failed" {
		level = LevelExceeded
		title = fmt.Sprintf("%d %s failed", len(items), noun)
	}

	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("%s (%s)", it.Name, it.Detail))
	}

	return Alert{
		Kind:      KindGoalCompleted,
		Level:     level,
		SubjectID: "goals:" + state,
		Title:     title,
		Message:   strings.Join(lines, ", "),
		Payload: Payload{
			Label:       state,
			Value:       decimal.NewFromInt(int64(len(items))),
			TargetLabel: "goals",
		},
		Items: items,
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func humanDuration(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	}
	return d.String()
}
