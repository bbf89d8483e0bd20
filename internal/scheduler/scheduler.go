// Package scheduler drives the engine on the clock's check and resolve
// cadences and on demand.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ogulcanaydogan/spend-guardian/pkg/clock"
	"github.com/ogulcanaydogan/spend-guardian/pkg/engine"
)

// Runner is the part of the engine the scheduler drives.
type Runner interface {
	Tick(ctx context.Context) (engine.TickResult, error)
	Resolve(ctx context.Context) (engine.Resolution, error)
}

// Scheduler runs periodic checks and the daily resolver.
type Scheduler struct {
	runner  Runner
	clock   clock.Clock
	logger  *slog.Logger
	trigger chan struct{}
}

// New creates a scheduler. Intervals come from the clock so the debug
// table speeds everything up at once.
func New(runner Runner, clk clock.Clock, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:  runner,
		clock:   clk,
		logger:  logger,
		trigger: make(chan struct{}, 1),
	}
}

// Trigger requests a check as soon as possible. Requests made while one is
// pending are coalesced.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Start runs both loops. It blocks until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	checkEvery := s.clock.Threshold(clock.CheckInterval)
	resolveEvery := s.clock.Threshold(clock.ResolveInterval)
	s.logger.Info("scheduler started", "check_interval", checkEvery.String(), "resolve_interval", resolveEvery.String())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.loop(ctx, checkEvery, s.trigger, s.check)
	}()
	go func() {
		defer wg.Done()
		s.loop(ctx, resolveEvery, nil, s.resolve)
	}()
	wg.Wait()

	s.logger.Info("scheduler stopped")
}

// loop runs fn immediately, then on every tick or trigger.
func (s *Scheduler) loop(ctx context.Context, every time.Duration, trigger <-chan struct{}, fn func(context.Context)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	fn(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		case <-trigger:
			fn(ctx)
		}
	}
}

func (s *Scheduler) check(ctx context.Context) {
	res, err := s.runner.Tick(ctx)
	if err != nil {
		s.logger.Error("scheduled check", "error", err)
	}
	s.logger.Debug("scheduled check done", "limits", res.Limits, "goals", res.Goals, "inactivity", res.Inactivity)
}

func (s *Scheduler) resolve(ctx context.Context) {
	res, err := s.runner.Resolve(ctx)
	if err != nil {
		s.logger.Error("scheduled resolve", "error", err)
		return
	}
	if n := len(res.Completed) + len(res.Failed); n > 0 {
		s.logger.Info("goals resolved", "completed", len(res.Completed), "failed", len(res.Failed))
	}
}
