package timeline

import (
	"sync"
	"time"
)

// Controller owns the visible window and the current zoom level. It is
// pure state plus arithmetic: no I/O, no callbacks. Callers observe the
// returned values to decide whether anything downstream must react.
type Controller struct {
	mu     sync.Mutex
	window TimeRange
	zoom   int
}

// NewController starts with a window of the level's duration centered on t.
func NewController(t time.Time, zoom int) *Controller {
	zoom = ClampZoom(zoom)
	return &Controller{
		window: Centered(t, WindowDuration(zoom)),
		zoom:   zoom,
	}
}

// Window returns the current visible range.
func (c *Controller) Window() TimeRange {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window
}

// Zoom returns the current ladder index.
func (c *Controller) Zoom() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zoom
}

// SetWindow replaces the visible range and reports whether it changed.
// A range equal to the current one is a no-op returning the existing
// window, so callers can skip redundant cache checks and repaints.
func (c *Controller) SetWindow(r TimeRange) (TimeRange, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !r.IsValid() || r.Equal(c.window) {
		return c.window, false
	}
	c.window = r
	return c.window, true
}

// SetZoom clamps the index and recomputes the window around the current
// midpoint with the new level's duration. Reports whether the level changed.
func (c *Controller) SetZoom(index int) (int, TimeRange, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	index = ClampZoom(index)
	if index == c.zoom {
		return c.zoom, c.window, false
	}
	c.zoom = index
	c.window = Centered(c.window.Mid(), WindowDuration(index))
	return c.zoom, c.window, true
}

// SetZoomWindow installs a zoom level together with an explicitly computed
// window. Anchored zooms (keep the instant under the cursor fixed) need
// both to change atomically so observers see a single transition.
func (c *Controller) SetZoomWindow(index int, r TimeRange) (int, TimeRange, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	index = ClampZoom(index)
	if !r.IsValid() {
		return c.zoom, c.window, false
	}
	if index == c.zoom && r.Equal(c.window) {
		return c.zoom, c.window, false
	}
	c.zoom = index
	c.window = r
	return c.zoom, c.window, true
}

// CenterOn moves the window so t sits at its midpoint, keeping the
// current zoom level's duration.
func (c *Controller) CenterOn(t time.Time) TimeRange {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.window = Centered(t, WindowDuration(c.zoom))
	return c.window
}

// PanBy shifts the window by d, preserving duration. Moving into the
// future is allowed; live-mode callers decide whether to clamp.
func (c *Controller) PanBy(d time.Duration) TimeRange {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d == 0 {
		return c.window
	}
	c.window = c.window.Shift(d)
	return c.window
}
