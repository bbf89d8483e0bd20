package period_test

import (
	"testing"
	"time"

	"github.com/ogulcanaydogan/spend-guardian/pkg/period"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	ts := time.Date(2025, 2, 14, 18, 30, 0, 0, time.UTC)

	assert.Equal(t, "2025-02-14", period.Key(ts, period.Daily))
	assert.Equal(t, "2025-W07", period.Key(ts, period.Weekly))
	assert.Equal(t, "2025-02", period.Key(ts, period.Monthly))
}

func TestKey_StableWithinPeriod(t *testing.T) {
	monday := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	sunday := time.Date(2025, 2, 16, 23, 59, 59, 0, time.UTC)
	nextMonday := time.Date(2025, 2, 17, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, period.Key(monday, period.Weekly), period.Key(sunday, period.Weekly))
	assert.NotEqual(t, period.Key(sunday, period.Weekly), period.Key(nextMonday, period.Weekly))
	assert.Equal(t, "2025-W08", period.Key(nextMonday, period.Weekly))
}

func TestKey_ISOYearBoundary(t *testing.T) {
	// 2024-12-30 is a Monday in ISO week 1 of 2025.
	ts := time.Date(2024, 12, 30, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-W01", period.Key(ts, period.Weekly))
	assert.Equal(t, "2024-12", period.Key(ts, period.Monthly))
}

func TestScope(t *testing.T) {
	ts := time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "weekly:2025-W07", period.Scope(ts, period.Weekly))
	assert.Equal(t, "daily:2025-02-14", period.Scope(ts, period.Daily))
}

func TestBounds(t *testing.T) {
	ts := time.Date(2025, 2, 14, 18, 30, 0, 0, time.UTC) // Friday

	start, end := period.Bounds(ts, period.Daily)
	assert.Equal(t, time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))

	start, end = period.Bounds(ts, period.Weekly)
	assert.Equal(t, time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Monday, start.Weekday())
	assert.Equal(t, 7*24*time.Hour, end.Sub(start))

	start, end = period.Bounds(ts, period.Monthly)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestBounds_SundayBelongsToPreviousWeek(t *testing.T) {
	sunday := time.Date(2025, 2, 16, 10, 0, 0, 0, time.UTC)
	start, _ := period.Bounds(sunday, period.Weekly)
	assert.Equal(t, time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), start)
}

func TestBounds_KeepsLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	ts := time.Date(2025, 2, 14, 22, 0, 0, 0, loc)

	start, _ := period.Bounds(ts, period.Daily)
	assert.Equal(t, loc, start.Location())
	assert.Equal(t, 14, start.Day())
}

func TestParseKind(t *testing.T) {
	k, err := period.ParseKind("weekly")
	require.NoError(t, err)
	assert.Equal(t, period.Weekly, k)

	_, err = period.ParseKind("yearly")
	assert.Error(t, err)
}

func TestDaysBetween(t *testing.T) {
	now := time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 2, period.DaysBetween(now, now.Add(48*time.Hour)))
	assert.Equal(t, 1, period.DaysBetween(now, now.Add(47*time.Hour)))
	assert.Equal(t, 0, period.DaysBetween(now, now.Add(time.Hour)))
	assert.Equal(t, -1, period.DaysBetween(now, now.Add(-25*time.Hour)))
}
