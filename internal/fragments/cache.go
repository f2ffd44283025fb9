package fragments

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/mmuteeullah/TimeScope/internal/timeline"
)

// Cache holds the availability bitmap for one channel. The buffered range
// is always a superset of the last requested visible window, widened by a
// configurable number of screens on each side so small pans hit the
// buffer instead of the network.
//
// At most one fetch runs at a time. A request arriving mid-fetch parks in
// a depth-one queue where newer requests overwrite older ones; the
// in-flight fetch is never cancelled, but its result is discarded on
// arrival if something newer has been queued or the cache was reset.
type Cache struct {
	querier Querier
	channel string
	screens int
	logger  *log.Logger

	mu       sync.Mutex
	filter   *Filter
	epoch    uint64
	loading  bool
	inflight *loadRequest
	pending  *loadRequest
	buffered timeline.TimeRange
	unit     time.Duration
	cells    Bitmap
}

// loadRequest describes one desired bitmap. The epoch pins it to the
// cache generation it was created under, so results landing after a
// reset can be recognized as stale.
type loadRequest struct {
	ctx    context.Context
	r      timeline.TimeRange
	zoom   int
	unit   time.Duration
	filter *Filter
	epoch  uint64
}

// same reports whether two requests would fetch identical data.
func (lr *loadRequest) same(other *loadRequest) bool {
	return other != nil &&
		lr.r.Equal(other.r) &&
		lr.zoom == other.zoom &&
		lr.epoch == other.epoch &&
		lr.filter.Equal(other.filter)
}

// NewCache creates a cache for the given channel. bufferScreens is how
// many visible-window widths to prefetch on each side.
func NewCache(querier Querier, channel string, bufferScreens int) *Cache {
	if bufferScreens < 1 {
		bufferScreens = 1
	}
	return &Cache{
		querier: querier,
		channel: channel,
		screens: bufferScreens,
		logger:  log.New(os.Stdout, "[FragmentCache] ", log.LstdFlags),
	}
}

// RequestRange makes sure the buffer covers the visible range at the
// given zoom, fetching when it does not. Call it on every window or zoom
// change; redundant calls are cheap no-ops.
func (c *Cache) RequestRange(ctx context.Context, visible timeline.TimeRange, zoom int) {
	if !visible.IsValid() {
		c.logger.Printf("Warning: ignoring request for invalid range %v - %v", visible.Start, visible.End)
		return
	}
	zoom = timeline.ClampZoom(zoom)
	unit := timeline.UnitDuration(zoom)
	desired := visible.Expand(time.Duration(c.screens) * visible.Duration())

	c.mu.Lock()
	// Already covered at this granularity and nothing in motion.
	if !c.loading && c.unit == unit && c.buffered.Contains(desired) {
		c.mu.Unlock()
		return
	}

	req := &loadRequest{
		ctx:    ctx,
		r:      desired,
		zoom:   zoom,
		unit:   unit,
		filter: c.filter,
		epoch:  c.epoch,
	}

	// Deduplicate against whatever would actually produce the final state:
	// the queued request if one exists, otherwise the in-flight one.
	if c.pending != nil {
		if req.same(c.pending) {
			c.mu.Unlock()
			return
		}
	} else if req.same(c.inflight) {
		c.mu.Unlock()
		return
	}

	if c.loading {
		// Depth-one queue, last writer wins.
		c.pending = req
		c.mu.Unlock()
		return
	}

	c.loading = true
	c.inflight = req
	c.mu.Unlock()

	go c.fetch(req)
}

// fetch runs one availability query and applies the outcome. It chains
// directly into the queued request, if any, keeping at most one fetch in
// flight at all times.
func (c *Cache) fetch(req *loadRequest) {
	bm, err := c.querier.Availability(req.ctx, Query{
		Start:   req.r.Start,
		End:     req.r.End,
		Unit:    req.unit,
		Channel: c.channel,
		Filter:  req.filter,
	})

	c.mu.Lock()
	switch {
	case err != nil:
		// Keep whatever bitmap we had; stale data beats a blank timeline.
		c.logger.Printf("Availability fetch failed: %v", err)
	case c.pending != nil:
		// Superseded mid-flight, drop the result.
	case req.epoch != c.epoch:
		// Reset mid-flight (filter or mode change), drop the result.
	default:
		c.cells = normalize(bm, req.r, req.unit, c.logger)
		c.buffered = req.r
		c.unit = req.unit
	}

	next := c.pending
	c.pending = nil
	c.inflight = next
	if next == nil {
		c.loading = false
	}
	c.mu.Unlock()

	if next != nil {
		go c.fetch(next)
	}
}

// Reset drops the buffer so the next RequestRange always refetches, and
// marks any in-flight result stale.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

// SetFilter installs new filter criteria. A real change invalidates the
// buffer; setting the same filter again does nothing.
func (c *Cache) SetFilter(f *Filter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.filter.Equal(f) {
		return
	}
	c.filter = f
	c.resetLocked()
}

// Filter returns the current filter criteria, nil when unfiltered.
func (c *Cache) Filter() *Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// Channel returns the channel this cache serves.
func (c *Cache) Channel() string {
	return c.channel
}

func (c *Cache) resetLocked() {
	c.epoch++
	c.buffered = timeline.TimeRange{}
	c.unit = 0
	c.cells = nil
	c.pending = nil
}

// Snapshot is a point-in-time copy of the cache contents for rendering.
// The cell slice is shared but never mutated in place; fetches replace it
// wholesale.
type Snapshot struct {
	Buffered timeline.TimeRange
	Unit     time.Duration
	Cells    Bitmap
	Loading  bool
}

// Snapshot returns the current buffer state.
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Buffered: c.buffered,
		Unit:     c.unit,
		Cells:    c.cells,
		Loading:  c.loading,
	}
}

// Runs merges consecutive available cells into time intervals clipped to
// the given range, ready to draw as contiguous bars.
func (s Snapshot) Runs(visible timeline.TimeRange) []timeline.TimeRange {
	if len(s.Cells) == 0 || s.Unit <= 0 || !s.Buffered.IsValid() || !visible.IsValid() {
		return nil
	}
	var runs []timeline.TimeRange
	var start time.Time
	open := false
	for i, cell := range s.Cells {
		switch {
		case cell != 0 && !open:
			open = true
			start = s.Buffered.Start.Add(time.Duration(i) * s.Unit)
		case cell == 0 && open:
			open = false
			runs = appendClipped(runs, start, s.Buffered.Start.Add(time.Duration(i)*s.Unit), visible)
		}
	}
	if open {
		// The trailing cell may overhang the buffer end; never report
		// availability past it.
		runs = appendClipped(runs, start, s.Buffered.End, visible)
	}
	return runs
}

func appendClipped(runs []timeline.TimeRange, start, end time.Time, visible timeline.TimeRange) []timeline.TimeRange {
	if start.Before(visible.Start) {
		start = visible.Start
	}
	if end.After(visible.End) {
		end = visible.End
	}
	if !start.Before(end) {
		return runs
	}
	return append(runs, timeline.NewRange(start, end))
}

// normalize pads or trims a payload to the expected cell count so the
// length invariant holds even against a misbehaving backend.
func normalize(bm Bitmap, r timeline.TimeRange, unit time.Duration, logger *log.Logger) Bitmap {
	want := CellCount(r, unit)
	if len(bm) == want {
		return bm
	}
	logger.Printf("Warning: expected %d cells, got %d; adjusting", want, len(bm))
	if len(bm) > want {
		return bm[:want]
	}
	out := make(Bitmap, want)
	copy(out, bm)
	return out
}
