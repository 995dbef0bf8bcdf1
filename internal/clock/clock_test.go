package clock_test

import (
	"testing"
	"time"

	"github.com/ezextender/extenderd/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystem_ReturnsUTC(t *testing.T) {
	now := clock.System().Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.WithinDuration(t, time.Now(), now, 2*time.Second)
}

func TestFixed_ReturnsSameInstant(t *testing.T) {
	at := time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)
	c := clock.Fixed(at)

	assert.Equal(t, at, c.Now())
	assert.Equal(t, at, c.Now(), "pinned clock must not advance")
}

func TestFixed_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	at := time.Date(2025, 11, 1, 13, 0, 0, 0, loc)

	c := clock.Fixed(at)
	assert.Equal(t, time.UTC, c.Now().Location())
	assert.True(t, c.Now().Equal(at))
}

func TestFromEnv_Unset(t *testing.T) {
	t.Setenv(clock.DemoNowEnv, "")

	c, err := clock.FromEnv()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), c.Now(), 2*time.Second)
}

func TestFromEnv_Pinned(t *testing.T) {
	t.Setenv(clock.DemoNowEnv, "2025-11-01T12:00:00Z")

	c, err := clock.FromEnv()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC), c.Now())
}

func TestFromEnv_Invalid(t *testing.T) {
	t.Setenv(clock.DemoNowEnv, "next tuesday")

	_, err := clock.FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "next tuesday")
}
