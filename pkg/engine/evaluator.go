// Package engine decides which threshold alerts are due and hands them to a
// dispatch sink. It owns spending limit, goal progress, deadline and
// inactivity alerts as well as the daily goal lifecycle resolution.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ogulcanaydogan/spend-guardian/pkg/dedup"
	"github.com/shopspring/decimal"
)

// Breakpoint is a threshold at which an alert fires once per scope.
type Breakpoint struct {
	Label string
	Value decimal.Decimal
}

// Ladder is an ordered set of breakpoints. Breakpoints are listed in the
// order a monotonic value crosses them. An inverted ladder fires when the
// value drops to or below a breakpoint, as with days remaining.
type Ladder struct {
	Breakpoints []Breakpoint
	Inverted    bool
}

func (l Ladder) crossed(bp Breakpoint, value decimal.Decimal) bool {
	if l.Inverted {
		return value.LessThanOrEqual(bp.Value)
	}
	return value.GreaterThanOrEqual(bp.Value)
}

func percentLadder(pcts ...int64) Ladder {
	l := Ladder{}
	for _, p := range pcts {
		l.Breakpoints = append(l.Breakpoints, Breakpoint{
			Label: fmt.Sprintf("%dpct", p),
			Value: decimal.New(p, -2),
		})
	}
	return l
}

// GoalReachedLabel marks a goal whose spend reached its target.
const GoalReachedLabel = "completed"

var (
	// LimitLadder holds the spending limit breakpoints as fractions of the limit.
	LimitLadder = percentLadder(80, 90, 100)

	// GoalLadder holds the goal progress breakpoints as fractions of the
	// target. Reaching the whole target is labelled "completed".
	GoalLadder = Ladder{Breakpoints: append(percentLadder(50, 75, 90).Breakpoints,
		Breakpoint{Label: GoalReachedLabel, Value: decimal.NewFromInt(1)})}

	// DeadlineLadder fires as remaining days fall to 3, 2 and 1.
	DeadlineLadder = Ladder{
		Inverted: true,
		Breakpoints: []Breakpoint{
			{Label: "deadline_3", Value: decimal.NewFromInt(3)},
			{Label: "deadline_2", Value: decimal.NewFromInt(2)},
			{Label: "deadline_1", Value: decimal.NewFromInt(1)},
		},
	}
)

// Evaluator determines which breakpoints were newly crossed and records
// them in the dedup store so each fires at most once per scope.
type Evaluator struct {
	store  dedup.Store
	logger *slog.Logger
}

// NewEvaluator creates an evaluator over the given marker store.
func NewEvaluator(store dedup.Store, logger *slog.Logger) *Evaluator {
	return &Evaluator{store: store, logger: logger}
}

// Evaluate returns the breakpoints crossed by value that had not fired yet
// for subject within scope, in crossing order. Breakpoints at or below the
// highest one already fired are skipped. A breakpoint that another caller
// marks concurrently is left out.
//
// An invalid scope is treated as a fresh scope: every crossed breakpoint is
// returned and nothing is recorded.
//
// When the store fails part way, the breakpoints marked so far are returned
// together with the error so the caller can still dispatch them.
func (e *Evaluator) Evaluate(ctx context.Context, subject, scope string, value decimal.Decimal, ladder Ladder) ([]Breakpoint, error) {
	var crossed []Breakpoint
	for _, bp := range ladder.Breakpoints {
		if ladder.crossed(bp, value) {
			crossed = append(crossed, bp)
		}
	}
	if len(crossed) == 0 {
		return nil, nil
	}

	probe := dedup.Key{Subject: subject, Condition: crossed[0].Label, Scope: scope}
	if err := probe.Validate(); err != nil {
		e.logger.Warn("invalid dedup scope, evaluating as fresh",
			"subject", subject, "scope", scope, "error", err)
		return crossed, nil
	}

	start := 0
	for i := len(crossed) - 1; i >= 0; i-- {
		key := dedup.Key{Subject: subject, Condition: crossed[i].Label, Scope: scope}
		seen, err := e.store.Check(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", key, err)
		}
		if seen {
			start = i + 1
			break
		}
	}

	var fired []Breakpoint
	for _, bp := range crossed[start:] {
		key := dedup.Key{Subject: subject, Condition: bp.Label, Scope: scope}
		won, err := e.store.Mark(ctx, key)
		if err != nil {
			return fired, fmt.Errorf("mark %s: %w", key, err)
		}
		if won {
			fired = append(fired, bp)
		}
	}
	return fired, nil
}

// Fired reports which breakpoints of ladder have already fired in scope.
func (e *Evaluator) Fired(ctx context.Context, subject, scope string, ladder Ladder) ([]string, error) {
	var labels []string
	for _, bp := range ladder.Breakpoints {
		seen, err := e.store.Check(ctx, dedup.Key{Subject: subject, Condition: bp.Label, Scope: scope})
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", bp.Label, err)
		}
		if seen {
			labels = append(labels, bp.Label)
		}
	}
	return labels, nil
}

// Policy decides how many of the breakpoints fired in one evaluation are
// turned into notifications.
type Policy string

const (
	// PolicyEach notifies once per fired breakpoint.
	PolicyEach Policy = "each"
	// PolicyHighest notifies only for the last breakpoint crossed.
	PolicyHighest Policy = "highest"
)

// ParsePolicy validates a policy name. An empty name selects PolicyEach.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyEach:
		return PolicyEach, nil
	case PolicyHighest:
		return PolicyHighest, nil
	}
	return "", fmt.Errorf("unknown alert policy %q", s)
}

func (p Policy) apply(fired []Breakpoint) []Breakpoint {
	if p == PolicyHighest && len(fired) > 1 {
		return fired[len(fired)-1:]
	}
	return fired
}
