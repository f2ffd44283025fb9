package playclock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockBeforeFirstSync(t *testing.T) {
	t.Parallel()
	c := New()

	assert.False(t, c.Synced())

	_, ok := c.Baseline()
	assert.False(t, ok)

	_, ok = c.Now(time.Now())
	assert.False(t, ok, "no interpolation without a baseline")
}

func TestClockInterpolatesElapsedTime(t *testing.T) {
	t.Parallel()
	c := New()

	server := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	local := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	c.Sync(server, local)

	require.True(t, c.Synced())

	base, ok := c.Baseline()
	require.True(t, ok)
	assert.Equal(t, server, base)

	// 2.5s of local time passing moves the projected position by 2.5s,
	// regardless of the offset between the two clocks.
	got, ok := c.Now(local.Add(2500 * time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, server.Add(2500*time.Millisecond), got)

	// Asking at the exact sync instant returns the baseline itself.
	got, ok = c.Now(local)
	require.True(t, ok)
	assert.Equal(t, server, got)
}

func TestSyncReplacesBaseline(t *testing.T) {
	t.Parallel()
	c := New()

	server1 := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	local1 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	c.Sync(server1, local1)

	// A later report supersedes the projection entirely, snapping any
	// accumulated drift.
	server2 := server1.Add(10 * time.Second)
	local2 := local1.Add(12 * time.Second)
	c.Sync(server2, local2)

	got, ok := c.Now(local2.Add(time.Second))
	require.True(t, ok)
	assert.Equal(t, server2.Add(time.Second), got)
}

func TestSyncIgnoresZeroValues(t *testing.T) {
	t.Parallel()
	c := New()

	server := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	local := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	c.Sync(server, local)

	c.Sync(time.Time{}, local.Add(time.Second))
	c.Sync(server.Add(time.Hour), time.Time{})

	base, ok := c.Baseline()
	require.True(t, ok)
	assert.Equal(t, server, base, "zero-valued reports must not disturb the baseline")
}

func TestReset(t *testing.T) {
	t.Parallel()
	c := New()
	c.Sync(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC), time.Now())

	c.Reset()
	assert.False(t, c.Synced())
	_, ok := c.Now(time.Now())
	assert.False(t, ok)
}
