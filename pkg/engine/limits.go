package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/ogulcanaydogan/spend-guardian/pkg/alerts"
	"github.com/ogulcanaydogan/spend-guardian/pkg/clock"
	"github.com/ogulcanaydogan/spend-guardian/pkg/dedup"
	"github.com/ogulcanaydogan/spend-guardian/pkg/period"
	"github.com/ogulcanaydogan/spend-guardian/pkg/storage"
	"github.com/shopspring/decimal"
)

// Limits maps each period to its spending limit. A missing or non-positive
// amount disables alerts for that period.
type Limits map[period.Kind]decimal.Decimal

// DefaultLimits are used when nothing is configured.
func DefaultLimits() Limits {
	return Limits{
		period.Daily:   decimal.NewFromInt(50),
		period.Weekly:  decimal.NewFromInt(300),
		period.Monthly: decimal.NewFromInt(1000),
	}
}

// LimitStatus describes spend against one period limit.
type LimitStatus struct {
	Period   period.Kind     `json:"period" yaml:"period"`
	Key      string          `json:"key" yaml:"key"`
	Limit    decimal.Decimal `json:"limit" yaml:"limit"`
	Spent    decimal.Decimal `json:"spent" yaml:"spent"`
	Fraction decimal.Decimal `json:"fraction" yaml:"fraction"`
	Fired    []string        `json:"fired" yaml:"fired"`
}

// LimitChecker raises alerts as total spend crosses a share of the daily,
// weekly and monthly limits. State is scoped by calendar period, so the
// same breakpoint fires again in the next period.
type LimitChecker struct {
	store        storage.Storage
	markers      dedup.Store
	eval         *Evaluator
	clock        clock.Clock
	sink         alerts.Sink
	limits       Limits
	policy       Policy
	queryTimeout time.Duration
	logger       *slog.Logger
}

func limitSubject(kind period.Kind) string {
	return "limit:" + string(kind)
}

// Check evaluates every enabled period and returns the number of alerts
// dispatched. A failed aggregate skips that period only.
func (c *LimitChecker) Check(ctx context.Context) int {
	now := c.clock.Now()
	dispatched := 0

	for _, kind := range period.All {
		limit, ok := c.limits[kind]
		if !ok || !limit.IsPositive() {
			continue
		}

		start, end := period.Bounds(now, kind)
		spent, err := c.totalSpend(ctx, start, end)
		if err != nil {
			c.logger.Error("aggregate spend", "period", string(kind), "error", err)
			continue
		}

		subject := limitSubject(kind)
		scope := period.Scope(now, kind)
		fired, err := c.eval.Evaluate(ctx, subject, scope, spent.Div(limit), LimitLadder)
		if err != nil {
			c.logger.Error("evaluate spend limit", "period", string(kind), "error", err)
		}

		if n, err := c.markers.Prune(ctx, subject, scope); err != nil {
			c.logger.Warn("prune closed periods", "period", string(kind), "error", err)
		} else if n > 0 {
			c.logger.Debug("pruned closed periods", "period", string(kind), "markers", n)
		}

		key := period.Key(now, kind)
		for _, bp := range c.policy.apply(fired) {
			alert := alerts.SpendLimit(string(kind), key, bp.Label, spent, limit)
			c.logger.Warn("spend limit crossed",
				"period", string(kind), "key", key, "label", bp.Label,
				"spent", spent.String(), "limit", limit.String())
			if err := c.sink.Dispatch(ctx, alert); err != nil {
				c.logger.Error("dispatch spend limit alert", "period", string(kind), "error", err)
				continue
			}
			dispatched++
		}
	}
	return dispatched
}

// Status reports spend and fired breakpoints for every enabled period.
func (c *LimitChecker) Status(ctx context.Context) ([]LimitStatus, error) {
	now := c.clock.Now()
	var out []LimitStatus

	for _, kind := range period.All {
		limit, ok := c.limits[kind]
		if !ok || !limit.IsPositive() {
			continue
		}
		start, end := period.Bounds(now, kind)
		spent, err := c.totalSpend(ctx, start, end)
		if err != nil {
			return nil, err
		}
		fired, err := c.eval.Fired(ctx, limitSubject(kind), period.Scope(now, kind), LimitLadder)
		if err != nil {
			return nil, err
		}
		out = append(out, LimitStatus{
			Period:   kind,
			Key:      period.Key(now, kind),
			Limit:    limit,
			Spent:    spent,
			Fraction: spent.Div(limit),
			Fired:    fired,
		})
	}
	return out, nil
}

func (c *LimitChecker) totalSpend(ctx context.Context, start, end time.Time) (decimal.Decimal, error) {
	ctx, cancel := withQueryTimeout(ctx, c.queryTimeout)
	defer cancel()
	return c.store.TotalSpend(ctx, start, end)
}

func withQueryTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
