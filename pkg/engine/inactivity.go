package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ogulcanaydogan/spend-guardian/pkg/alerts"
	"github.com/ogulcanaydogan/spend-guardian/pkg/clock"
	"github.com/ogulcanaydogan/spend-guardian/pkg/dedup"
	"github.com/ogulcanaydogan/spend-guardian/pkg/storage"
)

const inactivitySubject = "inactivity"

// InactivityStatus describes the current inactivity episode.
type InactivityStatus struct {
	LastActivity *time.Time    `json:"last_activity,omitempty" yaml:"last_activity,omitempty"`
	Elapsed      time.Duration `json:"elapsed" yaml:"elapsed"`
	Threshold24h time.Duration `json:"threshold_24h" yaml:"threshold_24h"`
	Threshold48h time.Duration `json:"threshold_48h" yaml:"threshold_48h"`
	Sent24h      bool          `json:"sent_24h" yaml:"sent_24h"`
	Sent48h      bool          `json:"sent_48h" yaml:"sent_48h"`
}

// InactivityTracker sends reminders when no activity has been recorded for
// a while. Each episode, the span after one activity, can send each
// reminder once. A new activity starts a new episode.
type InactivityTracker struct {
	store   storage.Storage
	markers dedup.Store
	clock   clock.Clock
	sink    alerts.Sink
	logger  *slog.Logger
}

func episodeScope(last time.Time) string {
	return "episode:" + strconv.FormatInt(last.UnixMilli(), 10)
}

// RecordActivity starts a new episode at the given time and drops the
// markers of earlier episodes.
func (t *InactivityTracker) RecordActivity(ctx context.Context, at time.Time) error {
	if err := t.store.RecordActivity(ctx, at); err != nil {
		return err
	}
	last, ok, err := t.store.LastActivity(ctx)
	if err != nil || !ok {
		return err
	}
	if _, err := t.markers.Prune(ctx, inactivitySubject, episodeScope(last)); err != nil {
		t.logger.Warn("prune inactivity episodes", "error", err)
	}
	return nil
}

// Check sends the reminder that is due, if any, and returns its label.
// The 48h reminder is considered first. When it fires, the 24h reminder of
// the same episode is recorded as sent without being dispatched.
func (t *InactivityTracker) Check(ctx context.Context) (string, error) {
	last, ok, err := t.store.LastActivity(ctx)
	if err != nil {
		return "", fmt.Errorf("get last activity: %w", err)
	}
	if !ok {
		return "", nil
	}

	elapsed := t.clock.Now().Sub(last)
	scope := episodeScope(last)
	long := t.clock.Threshold(clock.Inactivity48h)
	short := t.clock.Threshold(clock.Inactivity24h)

	switch {
	case elapsed >= long:
		won, err := t.markers.Mark(ctx, t.key(clock.Inactivity48h, scope))
		if err != nil || !won {
			return "", err
		}
		if _, err := t.markers.Mark(ctx, t.key(clock.Inactivity24h, scope)); err != nil {
			t.logger.Warn("mark skipped 24h reminder", "error", err)
		}
		return string(clock.Inactivity48h), t.dispatch(ctx, clock.Inactivity48h, long, elapsed)

	case elapsed >= short:
		won, err := t.markers.Mark(ctx, t.key(clock.Inactivity24h, scope))
		if err != nil || !won {
			return "", err
		}
		return string(clock.Inactivity24h), t.dispatch(ctx, clock.Inactivity24h, short, elapsed)
	}
	return "", nil
}

// Status reports the current episode.
func (t *InactivityTracker) Status(ctx context.Context) (InactivityStatus, error) {
	status := InactivityStatus{
		Threshold24h: t.clock.Threshold(clock.Inactivity24h),
		Threshold48h: t.clock.Threshold(clock.Inactivity48h),
	}
	last, ok, err := t.store.LastActivity(ctx)
	if err != nil {
		return status, fmt.Errorf("get last activity: %w", err)
	}
	if !ok {
		return status, nil
	}

	scope := episodeScope(last)
	status.LastActivity = &last
	status.Elapsed = t.clock.Now().Sub(last)
	if status.Sent24h, err = t.markers.Check(ctx, t.key(clock.Inactivity24h, scope)); err != nil {
		return status, err
	}
	if status.Sent48h, err = t.markers.Check(ctx, t.key(clock.Inactivity48h, scope)); err != nil {
		return status, err
	}
	return status, nil
}

func (t *InactivityTracker) key(label clock.Label, scope string) dedup.Key {
	return dedup.Key{Subject: inactivitySubject, Condition: string(label), Scope: scope}
}

func (t *InactivityTracker) dispatch(ctx context.Context, label clock.Label, threshold, elapsed time.Duration) error {
	t.logger.Info("inactivity reminder due", "label", string(label), "elapsed", elapsed.String())
	if err := t.sink.Dispatch(ctx, alerts.Inactivity(string(label), threshold, elapsed)); err != nil {
		return fmt.Errorf("dispatch inactivity alert: %w", err)
	}
	return nil
}
