package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Fanout is a Sink that delivers every alert to all of its notifiers.
// A failing notifier does not stop delivery to the others.
type Fanout struct {
	notifiers []Notifier
	logger    *slog.Logger
	now       func() time.Time
}

// NewFanout creates a sink over the given notifiers.
func NewFanout(logger *slog.Logger, notifiers ...Notifier) *Fanout {
	return &Fanout{
		notifiers: notifiers,
		logger:    logger,
		now:       time.Now,
	}
}

// Notifiers returns the names of the configured notifiers.
func (f *Fanout) Notifiers() []string {
	names := make([]string, 0, len(f.notifiers))
	for _, n := range f.notifiers {
		names = append(names, n.Name())
	}
	return names
}

func (f *Fanout) Dispatch(ctx context.Context, alert Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = f.now().UTC()
	}

	var errs []error
	for _, n := range f.notifiers {
		if err := n.Send(ctx, alert); err != nil {
			f.logger.Error("alert delivery failed",
				"notifier", n.Name(), "kind", string(alert.Kind), "subject", alert.SubjectID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Recorder is a Sink that keeps every dispatched alert in memory.
type Recorder struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *Recorder) Dispatch(_ context.Context, alert Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
	return nil
}

// Alerts returns a copy of the alerts dispatched so far.
func (r *Recorder) Alerts() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Alert, len(r.alerts))
	copy(out, r.alerts)
	return out
}

// Reset forgets recorded alerts.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = nil
}
