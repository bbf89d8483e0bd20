// Package period maps timestamps onto calendar periods. Keys scope
// recurring alert state so the same condition can fire again next period.
package period

import (
	"fmt"
	"time"
)

// Kind defines the granularity of a calendar period.
type Kind string

const (
	Daily   Kind = "daily"
	Weekly  Kind = "weekly"
	Monthly Kind = "monthly"
)

// All lists the kinds in evaluation order.
var All = []Kind{Daily, Weekly, Monthly}

const dayLayout = "2006-01-02"

// ParseKind validates a period name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Daily, Weekly, Monthly:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// Key returns a stable identifier for the period containing t, evaluated in
// t's location. Weeks follow ISO 8601, so the key year may differ from the
// calendar year around New Year.
func Key(t time.Time, kind Kind) string {
	switch kind {
	case Weekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case Monthly:
		return t.Format("2006-01")
	default:
		return t.Format(dayLayout)
	}
}

// Scope returns the dedup scope for the period containing t, e.g. "weekly:2025-W07".
func Scope(t time.Time, kind Kind) string {
	return string(kind) + ":" + Key(t, kind)
}

// Bounds returns the half-open interval [start, end) of the period
// containing t. Weeks start on Monday.
func Bounds(t time.Time, kind Kind) (start, end time.Time) {
	loc := t.Location()
	switch kind {
	case Weekly:
		weekday := int(t.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		start = time.Date(t.Year(), t.Month(), t.Day()-weekday+1, 0, 0, 0, 0, loc)
		end = start.AddDate(0, 0, 7)
	case Monthly:
		start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
		end = start.AddDate(0, 1, 0)
	default:
		start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		end = start.AddDate(0, 0, 1)
	}
	return start, end
}

// DaysBetween counts whole days from a to b, floored. Negative when b is before a.
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}
