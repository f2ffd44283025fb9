// Package widget assembles the timeline engine: window state, fragment
// cache, playback clock, gesture handling and render loop behind one
// facade the host application drives.
package widget

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/mmuteeullah/TimeScope/internal/fragments"
	"github.com/mmuteeullah/TimeScope/internal/gesture"
	"github.com/mmuteeullah/TimeScope/internal/playclock"
	"github.com/mmuteeullah/TimeScope/internal/render"
	"github.com/mmuteeullah/TimeScope/internal/timeline"
)

// DefaultBufferScreens is how many visible-window widths the cache
// prefetches on each side of the view.
const DefaultBufferScreens = 3

// Mode says whether the player follows the live edge or an archived
// position.
type Mode int

const (
	ModeLive Mode = iota
	ModePlayback
)

func (m Mode) String() string {
	if m == ModeLive {
		return "live"
	}
	return "playback"
}

// ResetPolicy controls whether a live to playback switch clears the
// fragment buffer.
type ResetPolicy string

const (
	// ResetAuto clears the buffer only when no motion filter is active;
	// a filtered buffer is expensive to rebuild and stays valid across
	// the switch.
	ResetAuto ResetPolicy = "auto"
	// ResetAlways clears on every live to playback switch.
	ResetAlways ResetPolicy = "always"
	// ResetNever keeps the buffer across mode switches.
	ResetNever ResetPolicy = "never"
)

// Callbacks notify the host application of user intent. Nil fields are
// skipped. They fire synchronously on whichever goroutine triggered the
// change, so handlers must return quickly.
type Callbacks struct {
	OnTimeClick          func(t time.Time)
	OnVisibleRangeChange func(r timeline.TimeRange)
	OnZoomChange         func(index int)
}

// Options configures an Engine.
type Options struct {
	Channel         string
	BufferScreens   int
	DragThresholdPx float64
	DefaultZoom     int
	Live            bool
	ResetPolicy     ResetPolicy
}

// Stats is a point-in-time snapshot of engine state for the debug
// overlay and the health endpoint.
type Stats struct {
	Window   timeline.TimeRange
	Zoom     int
	Mode     Mode
	Loading  bool
	Buffered timeline.TimeRange
	Frames   uint64
	Gesture  gesture.State
}

// Engine owns one timeline: it mutates the window on behalf of gestures,
// keeps the fragment cache covering the view, and feeds the render loop.
// It implements gesture.Commands.
type Engine struct {
	logger *log.Logger

	windows  *timeline.Controller
	cache    *fragments.Cache
	cursor   *timeline.CursorTracker
	clock    *playclock.Clock
	gestures *gesture.Controller
	loop     *render.Loop

	mu        sync.Mutex
	runCtx    context.Context
	mode      Mode
	policy    ResetPolicy
	follow    bool
	width     float64
	callbacks Callbacks
}

// NewEngine builds an engine over the given availability backend. The
// window starts centered on the local clock until the first server time
// sync arrives.
func NewEngine(querier fragments.Querier, opts Options) *Engine {
	if opts.BufferScreens < 1 {
		opts.BufferScreens = DefaultBufferScreens
	}
	if opts.ResetPolicy == "" {
		opts.ResetPolicy = ResetAuto
	}
	mode := ModePlayback
	if opts.Live {
		mode = ModeLive
	}

	e := &Engine{
		logger:  log.New(os.Stdout, "[Timeline] ", log.LstdFlags),
		windows: timeline.NewController(time.Now(), timeline.ClampZoom(opts.DefaultZoom)),
		cache:   fragments.NewCache(querier, opts.Channel, opts.BufferScreens),
		cursor:  timeline.NewCursorTracker(),
		clock:   playclock.New(),
		runCtx:  context.Background(),
		mode:    mode,
		policy:  opts.ResetPolicy,
		follow:  opts.Live,
	}
	e.gestures = gesture.NewController(e, opts.DragThresholdPx)
	return e
}

// Gestures returns the input controller the UI adapter feeds events to.
func (e *Engine) Gestures() *gesture.Controller {
	return e.gestures
}

// AttachRenderer binds the engine to a drawing surface and a frame
// scheduler. Call before Start; skipping it leaves the engine headless.
func (e *Engine) AttachRenderer(sched render.Scheduler, canvas render.Canvas) *render.Loop {
	e.loop = render.NewLoop(sched, canvas, e.windows, e.cache, e.cursor, e.clock)
	return e.loop
}

// SetCallbacks installs the host notification hooks.
func (e *Engine) SetCallbacks(cb Callbacks) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callbacks = cb
}

// Start seeds the cache for the current window and begins rendering.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	e.runCtx = ctx
	e.mu.Unlock()

	e.logger.Printf("Starting timeline engine (channel: %s, zoom: %d)", e.cache.Channel(), e.windows.Zoom())
	e.cache.RequestRange(ctx, e.windows.Window(), e.windows.Zoom())
	if e.loop != nil {
		e.loop.Start()
	}
}

// Stop halts rendering. The cache needs no teardown; an in-flight fetch
// completes on its own and its result is dropped or applied harmlessly.
func (e *Engine) Stop() {
	if e.loop != nil {
		e.loop.Stop()
	}
	e.logger.Println("Timeline engine stopped")
}

// Window returns the visible range. Part of gesture.Commands.
func (e *Engine) Window() timeline.TimeRange {
	return e.windows.Window()
}

// Zoom returns the current zoom index.
func (e *Engine) Zoom() int {
	return e.windows.Zoom()
}

// Mode returns the current player mode.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// PanBy shifts the window and drops live-edge following: the user is
// browsing history now. Part of gesture.Commands.
func (e *Engine) PanBy(delta time.Duration) {
	e.setFollow(false)
	w := e.windows.PanBy(delta)
	e.windowChanged(w)
}

// ZoomAt changes the zoom index by steps while keeping the anchor
// instant at the same horizontal fraction of the view, so the point
// under the cursor stays put. Part of gesture.Commands.
func (e *Engine) ZoomAt(anchor time.Time, fraction float64, steps int) {
	cur := e.windows.Zoom()
	next := timeline.ClampZoom(cur + steps)
	if next == cur {
		return
	}
	e.setFollow(false)

	newDur := timeline.WindowDuration(next)
	start := anchor.Add(-time.Duration(fraction * float64(newDur)))
	zoom, w, changed := e.windows.SetZoomWindow(next, timeline.NewRange(start, start.Add(newDur)))
	if !changed {
		return
	}
	e.windowChanged(w)
	e.zoomChanged(zoom)
}

// SetZoom jumps to an absolute zoom level, recentering on the window
// midpoint. For the host's zoom buttons.
func (e *Engine) SetZoom(index int) {
	zoom, w, changed := e.windows.SetZoom(index)
	if !changed {
		return
	}
	e.windowChanged(w)
	e.zoomChanged(zoom)
}

// TimeClick resolves a tap or click on the timeline. Part of
// gesture.Commands.
func (e *Engine) TimeClick(t time.Time) {
	e.logger.Printf("Time clicked: %s", t.Format(time.RFC3339))
	if cb := e.callbacksCopy(); cb.OnTimeClick != nil {
		cb.OnTimeClick(t)
	}
}

// CursorMoved updates hover tracking. Part of gesture.Commands.
func (e *Engine) CursorMoved(pixelX float64) {
	e.cursor.Update(pixelX, e.viewWidth(), e.windows.Window())
}

// CursorLeft clears hover tracking. Part of gesture.Commands.
func (e *Engine) CursorLeft() {
	e.cursor.Clear()
}

// CenterOn jumps the view to an instant, for external seek commands.
func (e *Engine) CenterOn(t time.Time) {
	e.setFollow(false)
	w := e.windows.CenterOn(t)
	e.windowChanged(w)
}

// GoLive recenters on the recorder's present and resumes following it.
func (e *Engine) GoLive() {
	e.SetMode(ModeLive)
	e.setFollow(true)
	if cur, ok := e.clock.Now(time.Now()); ok {
		w := e.windows.CenterOn(cur)
		e.windowChanged(w)
	}
}

// SetMode records the player mode. Switching live to playback clears the
// fragment buffer according to the configured policy; the availability
// horizon stops advancing once playback is pinned, so a live buffer may
// overstate what exists.
func (e *Engine) SetMode(m Mode) {
	e.mu.Lock()
	prev := e.mode
	e.mode = m
	policy := e.policy
	e.mu.Unlock()
	if prev == m {
		return
	}
	e.logger.Printf("Mode changed: %s -> %s", prev, m)

	if m == ModePlayback {
		e.setFollow(false)
		if prev == ModeLive && e.shouldReset(policy) {
			e.cache.Reset()
			e.requestCurrent()
		}
	}
}

// SetFilter changes the motion filter. The cache invalidates itself on
// a real change and the current view is refetched with the new criteria.
func (e *Engine) SetFilter(f *fragments.Filter) {
	e.cache.SetFilter(f)
	e.requestCurrent()
}

// SyncServerTime feeds a fresh authoritative instant from the recording
// system. It reseeds playback interpolation and, while following live,
// keeps the window pinned around the present.
func (e *Engine) SyncServerTime(server time.Time) {
	e.clock.Sync(server, time.Now())
	if e.Mode() == ModeLive && e.isFollowing() {
		w := e.windows.CenterOn(server)
		e.windowChanged(w)
	}
}

// SetViewWidth tells the engine its device-pixel width, needed for
// cursor mapping before the first render.
func (e *Engine) SetViewWidth(w float64) {
	e.mu.Lock()
	e.width = w
	e.mu.Unlock()
	e.gestures.SetViewWidth(w)
}

// Stats returns a snapshot for the debug overlay.
func (e *Engine) Stats() Stats {
	snap := e.cache.Snapshot()
	var frames uint64
	if e.loop != nil {
		frames = e.loop.Stats().Frames
	}
	return Stats{
		Window:   e.windows.Window(),
		Zoom:     e.windows.Zoom(),
		Mode:     e.Mode(),
		Loading:  snap.Loading,
		Buffered: snap.Buffered,
		Frames:   frames,
		Gesture:  e.gestures.State(),
	}
}

// windowChanged refreshes the cache for the new view and notifies the
// host.
func (e *Engine) windowChanged(w timeline.TimeRange) {
	e.cache.RequestRange(e.ctx(), w, e.windows.Zoom())
	if cb := e.callbacksCopy(); cb.OnVisibleRangeChange != nil {
		cb.OnVisibleRangeChange(w)
	}
}

// requestCurrent refetches the unchanged view, after an invalidation.
func (e *Engine) requestCurrent() {
	e.cache.RequestRange(e.ctx(), e.windows.Window(), e.windows.Zoom())
}

func (e *Engine) zoomChanged(index int) {
	e.logger.Printf("Zoom level: %d (%s window)", index, timeline.WindowDuration(index))
	if cb := e.callbacksCopy(); cb.OnZoomChange != nil {
		cb.OnZoomChange(index)
	}
}

func (e *Engine) shouldReset(p ResetPolicy) bool {
	switch p {
	case ResetAlways:
		return true
	case ResetNever:
		return false
	default:
		return e.cache.Filter() == nil
	}
}

func (e *Engine) ctx() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runCtx
}

func (e *Engine) callbacksCopy() Callbacks {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.callbacks
}

func (e *Engine) viewWidth() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.width
}

func (e *Engine) setFollow(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.follow = on
}

func (e *Engine) isFollowing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.follow
}
