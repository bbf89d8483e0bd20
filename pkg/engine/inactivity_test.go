package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/ogulcanaydogan/spend-guardian/pkg/alerts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInactivity_NoActivityRecorded(t *testing.T) {
	h := newHarness(t, noLimits())
	h.clock.Advance(72 * time.Hour)

	res, err := h.engine.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Inactivity)
	assert.Empty(t, h.sink.Alerts())
}

func TestInactivity_EpisodeReset(t *testing.T) {
	h := newHarness(t, noLimits())
	ctx := context.Background()

	require.NoError(t, h.engine.RecordActivity(ctx, time.Time{}))
	h.clock.Advance(25 * time.Hour)

	res, err := h.engine.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, "inactivity_24h", res.Inactivity)

	res, err = h.engine.Tick(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Inactivity, "once per episode")

	require.NoError(t, h.engine.RecordActivity(ctx, time.Time{}))
	h.clock.Advance(25 * time.Hour)

	res, err = h.engine.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, "inactivity_24h", res.Inactivity, "a new episode fires again")
	assert.Equal(t, []string{"inactivity_24h", "inactivity_24h"}, h.labels(alerts.KindInactivity))
}

func TestInactivity_24hThen48h(t *testing.T) {
	h := newHarness(t, noLimits())
	ctx := context.Background()

	require.NoError(t, h.engine.RecordActivity(ctx, friday))
	h.clock.Advance(25 * time.Hour)
	_, err := h.engine.Tick(ctx)
	require.NoError(t, err)

	h.clock.Advance(24 * time.Hour)
	res, err := h.engine.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, "inactivity_48h", res.Inactivity)

	h.clock.Advance(24 * time.Hour)
	res, err = h.engine.Tick(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Inactivity)
	assert.Equal(t, []string{"inactivity_24h", "inactivity_48h"}, h.labels(alerts.KindInactivity))
}

func TestInactivity_48hDueSkips24h(t *testing.T) {
	h := newHarness(t, noLimits())
	ctx := context.Background()

	require.NoError(t, h.engine.RecordActivity(ctx, friday))
	h.clock.Advance(49 * time.Hour)

	res, err := h.engine.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, "inactivity_48h", res.Inactivity)

	res, err = h.engine.Tick(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Inactivity, "the skipped 24h reminder is never sent")
	assert.Equal(t, []string{"inactivity_48h"}, h.labels(alerts.KindInactivity))

	status, err := h.engine.InactivityStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.Sent24h)
	assert.True(t, status.Sent48h)
	assert.Equal(t, 49*time.Hour, status.Elapsed)
}

func TestInactivity_OlderActivityKeepsEpisode(t *testing.T) {
	h := newHarness(t, noLimits())
	ctx := context.Background()

	require.NoError(t, h.engine.RecordActivity(ctx, friday))
	h.clock.Advance(25 * time.Hour)
	_, err := h.engine.Tick(ctx)
	require.NoError(t, err)

	// A backdated record does not start a new episode.
	require.NoError(t, h.engine.RecordActivity(ctx, friday.Add(-time.Hour)))
	res, err := h.engine.Tick(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Inactivity)

	status, err := h.engine.InactivityStatus(ctx)
	require.NoError(t, err)
	require.NotNil(t, status.LastActivity)
	assert.True(t, status.LastActivity.Equal(friday))
	assert.True(t, status.Sent24h)
}

func TestInactivity_StatusWithoutActivity(t *testing.T) {
	h := newHarness(t, noLimits())
	status, err := h.engine.InactivityStatus(context.Background())
	require.NoError(t, err)
	assert.Nil(t, status.LastActivity)
	assert.Equal(t, 24*time.Hour, status.Threshold24h)
	assert.Equal(t, 48*time.Hour, status.Threshold48h)
}
