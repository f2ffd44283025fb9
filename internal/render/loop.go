package render

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/mmuteeullah/TimeScope/internal/fragments"
	"github.com/mmuteeullah/TimeScope/internal/playclock"
	"github.com/mmuteeullah/TimeScope/internal/timeline"
)

// Loop paints the timeline once per scheduled frame and re-requests
// itself until stopped. It only reads its collaborators; draw cadence is
// fully decoupled from how often their state changes.
type Loop struct {
	sched   Scheduler
	canvas  Canvas
	windows *timeline.Controller
	cache   *fragments.Cache
	cursor  *timeline.CursorTracker
	clock   *playclock.Clock
	logger  *log.Logger

	mu      sync.Mutex
	theme   Theme
	running bool
	token   FrameToken
	last    time.Time
	lastDur time.Duration
	frames  uint64
	touchUI bool
}

// FrameStats is a small counter block for the debug overlay.
type FrameStats struct {
	Frames    uint64
	LastFrame time.Duration
}

// NewLoop wires the render loop to its inputs. Everything is read fresh
// each frame, so callers mutate the collaborators directly and the next
// frame picks the changes up.
func NewLoop(sched Scheduler, canvas Canvas, windows *timeline.Controller, cache *fragments.Cache, cursor *timeline.CursorTracker, clock *playclock.Clock) *Loop {
	return &Loop{
		sched:   sched,
		canvas:  canvas,
		windows: windows,
		cache:   cache,
		cursor:  cursor,
		clock:   clock,
		theme:   DefaultTheme(),
		logger:  log.New(os.Stdout, "[RenderLoop] ", log.LstdFlags),
	}
}

// SetTheme replaces the palette. Takes effect next frame.
func (l *Loop) SetTheme(th Theme) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.theme = th
}

// SetTouchUI marks the host as touch driven, which hides the hover
// cursor indicator.
func (l *Loop) SetTouchUI(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.touchUI = on
}

// Start schedules the first frame. Frames then chain themselves until
// Stop is called.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.running = true
	l.last = time.Time{}
	l.token = l.sched.RequestFrame(l.frame)
	l.logger.Println("Started")
}

// Stop cancels the pending frame and halts the chain.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	l.running = false
	l.sched.CancelFrame(l.token)
	l.logger.Println("Stopped")
}

// Stats returns frame counters.
func (l *Loop) Stats() FrameStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return FrameStats{Frames: l.frames, LastFrame: l.lastDur}
}

// frame is the per-frame callback: account elapsed time, draw, schedule
// the next frame.
func (l *Loop) frame(now time.Time) {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	if !l.last.IsZero() {
		l.lastDur = now.Sub(l.last)
	}
	l.last = now
	l.frames++
	theme := l.theme
	touchUI := l.touchUI
	l.mu.Unlock()

	l.draw(now, theme, touchUI)

	l.mu.Lock()
	if l.running {
		l.token = l.sched.RequestFrame(l.frame)
	}
	l.mu.Unlock()
}

// draw runs the ordered passes. A surface without geometry skips the
// frame silently; the chain keeps going and recovers when the surface
// comes back.
func (l *Loop) draw(now time.Time, theme Theme, touchUI bool) {
	w, h := l.canvas.Size()
	if w <= 0 || h <= 0 {
		return
	}
	window := l.windows.Window()
	if !window.IsValid() {
		return
	}
	scale := l.canvas.Scale()
	if scale <= 0 {
		scale = 1
	}

	l.canvas.FillRect(0, 0, w, h, theme.Background)
	l.drawGrid(window, w, h, scale, theme)
	l.drawUnitTicks(window, w, h, scale, theme)
	l.drawAvailability(window, w, h, theme)
	l.drawProgress(window, now, w, h, theme)
	l.drawNowLine(window, now, w, h, scale, theme)
	if !touchUI {
		l.drawCursor(window, w, h, scale, theme)
	}
}

// drawGrid paints the coarse hour/day lines with their labels.
func (l *Loop) drawGrid(window timeline.TimeRange, w, h, scale float64, theme Theme) {
	step := gridStep(window.Duration())
	layout := gridLabelLayout(step)

	for t := alignGrid(window.Start, step); t.Before(window.End); t = nextGrid(t, step) {
		x, ok := timeline.PixelAtTime(t, w, window)
		if !ok {
			continue
		}
		l.canvas.StrokeLine(x, 0, x, h, scale, theme.GridLine)
		l.canvas.Text(t.Format(layout), x+3*scale, 4*scale, theme.GridLabel)
	}
}

// drawUnitTicks paints the fine ticks at the zoom level's cell unit,
// skipped entirely when they would crowd closer than a few pixels.
func (l *Loop) drawUnitTicks(window timeline.TimeRange, w, h, scale float64, theme Theme) {
	unit := timeline.UnitDuration(l.windows.Zoom())
	if unit <= 0 {
		return
	}
	px := float64(unit) / float64(window.Duration()) * w
	if px < 4*scale {
		return
	}
	tickTop := h - 8*scale
	for t := window.Start.Truncate(unit); t.Before(window.End); t = t.Add(unit) {
		if t.Before(window.Start) {
			continue
		}
		x, ok := timeline.PixelAtTime(t, w, window)
		if !ok {
			continue
		}
		l.canvas.StrokeLine(x, tickTop, x, h, scale, theme.UnitTick)
	}
}

// drawAvailability paints one bar per contiguous run of recorded cells.
func (l *Loop) drawAvailability(window timeline.TimeRange, w, h float64, theme Theme) {
	snap := l.cache.Snapshot()
	bandY := h * 0.55
	bandH := h * 0.35
	for _, run := range snap.Runs(window) {
		x0, ok0 := timeline.PixelAtTime(run.Start, w, window)
		x1, ok1 := timeline.PixelAtTime(run.End, w, window)
		if !ok0 || !ok1 || x1 <= x0 {
			continue
		}
		l.canvas.FillRect(x0, bandY, x1-x0, bandH, theme.Available)
	}
}

// drawProgress fills from the last server-reported instant to the
// interpolated playback position, so the fill edge glides between the
// low-frequency server updates.
func (l *Loop) drawProgress(window timeline.TimeRange, now time.Time, w, h float64, theme Theme) {
	base, ok := l.clock.Baseline()
	if !ok {
		return
	}
	cur, ok := l.clock.Now(now)
	if !ok {
		return
	}
	x0, ok0 := timeline.PixelAtTime(base, w, window)
	x1, ok1 := timeline.PixelAtTime(cur, w, window)
	if !ok0 || !ok1 {
		return
	}
	x0 = clamp(x0, 0, w)
	x1 = clamp(x1, 0, w)
	if x1 <= x0 {
		return
	}
	l.canvas.FillRect(x0, 0, x1-x0, h, theme.Progress)
}

// drawNowLine marks the interpolated playback position when it is inside
// the window.
func (l *Loop) drawNowLine(window timeline.TimeRange, now time.Time, w, h, scale float64, theme Theme) {
	cur, ok := l.clock.Now(now)
	if !ok || !window.ContainsTime(cur) {
		return
	}
	x, ok := timeline.PixelAtTime(cur, w, window)
	if !ok {
		return
	}
	l.canvas.StrokeLine(x, 0, x, h, 2*scale, theme.NowLine)
}

// drawCursor marks the hovered pixel and labels it with the instant
// currently under it, which may differ from the instant captured at move
// time if the window panned since.
func (l *Loop) drawCursor(window timeline.TimeRange, w, h, scale float64, theme Theme) {
	pos, ok := l.cursor.Position()
	if !ok {
		return
	}
	l.canvas.StrokeLine(pos.PixelX, 0, pos.PixelX, h, scale, theme.CursorLine)
	if t, ok := timeline.TimeAtPixel(pos.PixelX, w, window); ok {
		l.canvas.Text(t.Format("15:04:05"), pos.PixelX+4*scale, h*0.1, theme.CursorText)
	}
}

// gridStep picks the coarse gridline interval for a window duration.
func gridStep(d time.Duration) time.Duration {
	switch {
	case d <= 2*time.Minute:
		return 15 * time.Second
	case d <= 10*time.Minute:
		return time.Minute
	case d <= 30*time.Minute:
		return 5 * time.Minute
	case d <= 2*time.Hour:
		return 15 * time.Minute
	case d <= 6*time.Hour:
		return time.Hour
	case d <= 24*time.Hour:
		return 3 * time.Hour
	case d <= 72*time.Hour:
		return 12 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// gridLabelLayout picks the label format to match the step resolution.
func gridLabelLayout(step time.Duration) string {
	switch {
	case step < time.Minute:
		return "15:04:05"
	case step < 24*time.Hour:
		return "15:04"
	default:
		return "Jan 02"
	}
}

// alignGrid returns the first gridline at or after start. Day steps snap
// to local midnight rather than a multiple of 24h from the epoch.
func alignGrid(start time.Time, step time.Duration) time.Time {
	if step >= 24*time.Hour {
		d := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
		if d.Before(start) {
			d = d.AddDate(0, 0, 1)
		}
		return d
	}
	t := start.Truncate(step)
	if t.Before(start) {
		t = t.Add(step)
	}
	return t
}

// nextGrid advances one step, stepping whole calendar days for day-sized
// steps so daylight saving transitions stay on midnight.
func nextGrid(t time.Time, step time.Duration) time.Time {
	if step >= 24*time.Hour {
		return t.AddDate(0, 0, 1)
	}
	return t.Add(step)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
