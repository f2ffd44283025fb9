// Package playclock tracks the playback position reported by the media
// server and projects it forward between reports using the local clock.
package playclock

import (
	"sync"
	"time"
)

// Clock holds the last server-reported playback instant and the local
// time at which it arrived. Callers interpolate the current position by
// adding the local elapsed time since the report, so the position keeps
// advancing smoothly even when reports are seconds apart.
type Clock struct {
	mu       sync.Mutex
	base     time.Time
	syncedAt time.Time
}

// New returns a clock with no baseline yet.
func New() *Clock {
	return &Clock{}
}

// Sync records a fresh server instant observed at the given local time.
// Zero values are ignored so a failed report cannot wipe the baseline.
func (c *Clock) Sync(server, local time.Time) {
	if server.IsZero() || local.IsZero() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = server
	c.syncedAt = local
}

// Baseline returns the last server instant as reported, without
// interpolation. The second return is false before the first sync.
func (c *Clock) Baseline() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.base.IsZero() {
		return time.Time{}, false
	}
	return c.base, true
}

// Now projects the playback position to the given local instant. The
// second return is false before the first sync.
func (c *Clock) Now(local time.Time) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.base.IsZero() {
		return time.Time{}, false
	}
	return c.base.Add(local.Sub(c.syncedAt)), true
}

// Synced reports whether at least one server instant has arrived.
func (c *Clock) Synced() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.base.IsZero()
}

// Reset forgets the baseline, for example when switching channels.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = time.Time{}
	c.syncedAt = time.Time{}
}
