package timeline

import (
	"math"
	"sync"
	"time"
)

// TimeAtPixel maps a horizontal pixel position inside a container of the
// given width to the instant it represents within the window. The second
// return is false when the geometry is unusable (zero width, invalid
// window, non-finite pixel) rather than dividing by zero.
func TimeAtPixel(pixelX, width float64, w TimeRange) (time.Time, bool) {
	if width <= 0 || !w.IsValid() || math.IsNaN(pixelX) || math.IsInf(pixelX, 0) {
		return time.Time{}, false
	}
	frac := pixelX / width
	offset := time.Duration(frac * float64(w.Duration()))
	return w.Start.Add(offset), true
}

// PixelAtTime is the inverse mapping, for placing a marker at a known
// instant. Same geometry guards as TimeAtPixel.
func PixelAtTime(t time.Time, width float64, w TimeRange) (float64, bool) {
	if width <= 0 || !w.IsValid() || t.IsZero() {
		return 0, false
	}
	frac := float64(t.Sub(w.Start)) / float64(w.Duration())
	return frac * width, true
}

// CursorPosition is the transient pointer location over the timeline.
type CursorPosition struct {
	PixelX float64
	Time   time.Time
}

// CursorTracker remembers where the pointer currently hovers. It is
// recomputed on every move and cleared when the pointer leaves.
type CursorTracker struct {
	mu  sync.Mutex
	pos *CursorPosition
}

// NewCursorTracker returns an empty tracker.
func NewCursorTracker() *CursorTracker {
	return &CursorTracker{}
}

// Update records the pointer at pixelX, mapped through the given window
// geometry. An unusable geometry clears the tracker instead.
func (ct *CursorTracker) Update(pixelX, width float64, w TimeRange) {
	t, ok := TimeAtPixel(pixelX, width, w)
	ct.mu.Lock()
	defer ct.mu.Unlock()
	if !ok {
		ct.pos = nil
		return
	}
	ct.pos = &CursorPosition{PixelX: pixelX, Time: t}
}

// Clear forgets the pointer position.
func (ct *CursorTracker) Clear() {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.pos = nil
}

// Position returns the current pointer location, if any.
func (ct *CursorTracker) Position() (CursorPosition, bool) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	if ct.pos == nil {
		return CursorPosition{}, false
	}
	return *ct.pos, true
}
