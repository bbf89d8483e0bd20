// Package clock supplies the current time and the duration thresholds that
// every time-based check consumes. Thresholds are looked up by label so the
// accelerated (debug) mode can substitute second-scale values in one place.
package clock

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Label names a duration threshold.
type Label string

const (
	Inactivity24h   Label = "inactivity_24h"   // First inactivity reminder
	Inactivity48h   Label = "inactivity_48h"   // Second inactivity reminder
	CheckInterval   Label = "check_interval"   // Periodic alert check cadence
	ResolveInterval Label = "resolve_interval" // Goal lifecycle resolver cadence
)

// Clock is the time source handed to every component at construction.
type Clock interface {
	// Now returns the current wall-clock time.
	Now() time.Time

	// Threshold returns the effective duration for a label.
	Threshold(label Label) time.Duration
}

// RealThresholds are the nominal production durations.
var RealThresholds = map[Label]time.Duration{
	Inactivity24h:   24 * time.Hour,
	Inactivity48h:   48 * time.Hour,
	CheckInterval:   6 * time.Hour,
	ResolveInterval: 24 * time.Hour,
}

// DebugThresholds compress day-scale thresholds into seconds.
var DebugThresholds = map[Label]time.Duration{
	Inactivity24h:   30 * time.Second,
	Inactivity48h:   60 * time.Second,
	CheckInterval:   30 * time.Second,
	ResolveInterval: 2 * time.Minute,
}

// System is the process clock. It always reports true wall-clock time; the
// debug flag only changes which threshold table is in effect.
type System struct {
	debug bool
	table map[Label]time.Duration
	now   func() time.Time
}

// NewSystem creates a clock in real or accelerated mode. Overrides replace
// entries of the active table and are validated here, so a bad table fails
// at startup rather than mid-run.
func NewSystem(debug bool, overrides map[Label]time.Duration) (*System, error) {
	table, err := buildTable(debug, overrides)
	if err != nil {
		return nil, err
	}
	return &System{debug: debug, table: table, now: time.Now}, nil
}

func (c *System) Now() time.Time { return c.now() }

func (c *System) Threshold(label Label) time.Duration { return c.table[label] }

// Debug reports whether the accelerated table is active.
func (c *System) Debug() bool { return c.debug }

// Table returns a copy of the effective thresholds.
func (c *System) Table() map[Label]time.Duration {
	out := make(map[Label]time.Duration, len(c.table))
	for k, v := range c.table {
		out[k] = v
	}
	return out
}

// Manual is a settable clock for tests and replays.
type Manual struct {
	mu    sync.Mutex
	now   time.Time
	table map[Label]time.Duration
}

// NewManual creates a manual clock frozen at t using the real thresholds.
func NewManual(t time.Time) *Manual {
	table, _ := buildTable(false, nil)
	return &Manual{now: t, table: table}
}

// NewManualDebug creates a manual clock frozen at t using the debug thresholds.
func NewManualDebug(t time.Time) *Manual {
	table, _ := buildTable(true, nil)
	return &Manual{now: t, table: table}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Threshold(label Label) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table[label]
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Labels returns all known labels in sorted order.
func Labels() []Label {
	labels := make([]Label, 0, len(RealThresholds))
	for l := range RealThresholds {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	return labels
}

// ParseLabel validates a label string.
func ParseLabel(s string) (Label, error) {
	l := Label(s)
	if _, ok := RealThresholds[l]; !ok {
		return "", fmt.Errorf("unknown threshold label %q", s)
	}
	return l, nil
}

func buildTable(debug bool, overrides map[Label]time.Duration) (map[Label]time.Duration, error) {
	base := RealThresholds
	if debug {
		base = DebugThresholds
	}

	table := make(map[Label]time.Duration, len(base))
	for k, v := range base {
		table[k] = v
	}
	for label, d := range overrides {
		if _, ok := base[label]; !ok {
			return nil, fmt.Errorf("unknown threshold label %q", label)
		}
		if d <= 0 {
			return nil, fmt.Errorf("threshold %q must be positive, got %s", label, d)
		}
		table[label] = d
	}

	if table[Inactivity48h] <= table[Inactivity24h] {
		return nil, fmt.Errorf("threshold %q (%s) must exceed %q (%s)",
			Inactivity48h, table[Inactivity48h], Inactivity24h, table[Inactivity24h])
	}
	return table, nil
}
