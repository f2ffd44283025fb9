package gesture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmuteeullah/TimeScope/internal/timeline"
)

// commandLog records every command and applies pans to its window the way
// the real engine would.
type commandLog struct {
	window   timeline.TimeRange
	pans     []time.Duration
	zooms    []zoomCall
	clicks   []time.Time
	cursorXs []float64
	leaves   int
}

type zoomCall struct {
	anchor   time.Time
	fraction float64
	steps    int
}

func (cl *commandLog) Window() timeline.TimeRange { return cl.window }

func (cl *commandLog) PanBy(d time.Duration) {
	cl.pans = append(cl.pans, d)
	cl.window = cl.window.Shift(d)
}

func (cl *commandLog) ZoomAt(anchor time.Time, fraction float64, steps int) {
	cl.zooms = append(cl.zooms, zoomCall{anchor: anchor, fraction: fraction, steps: steps})
}

func (cl *commandLog) TimeClick(t time.Time) { cl.clicks = append(cl.clicks, t) }
func (cl *commandLog) CursorMoved(x float64) { cl.cursorXs = append(cl.cursorXs, x) }
func (cl *commandLog) CursorLeft()           { cl.leaves++ }

func newTestController() (*Controller, *commandLog) {
	start := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	cl := &commandLog{window: timeline.NewRange(start, start.Add(time.Hour))}
	c := NewController(cl, DefaultDragThreshold)
	c.SetViewWidth(800)
	return c, cl
}

func TestClickBelowThreshold(t *testing.T) {
	t.Parallel()
	c, cl := newTestController()

	c.PointerDown(100)
	assert.Equal(t, StatePendingDrag, c.State())

	c.PointerMove(102)
	assert.Equal(t, StatePendingDrag, c.State(), "2px of jitter must not start a drag")

	c.PointerUp(102)
	assert.Equal(t, StateIdle, c.State())

	require.Len(t, cl.clicks, 1, "a press and release inside the threshold is one click")
	assert.Empty(t, cl.pans, "a click must not pan")

	// 102px of 800px into a one hour window.
	want := cl.window.Start.Add(time.Duration(102.0 / 800.0 * float64(time.Hour)))
	assert.Equal(t, want, cl.clicks[0])
}

func TestReleaseExactlyAtThresholdIsStillClick(t *testing.T) {
	t.Parallel()
	c, cl := newTestController()

	c.PointerDown(100)
	c.PointerMove(105)
	c.PointerUp(105)

	assert.Len(t, cl.clicks, 1)
	assert.Empty(t, cl.pans)
}

func TestDragBeyondThresholdPansWithoutClick(t *testing.T) {
	t.Parallel()
	c, cl := newTestController()

	c.PointerDown(100)
	c.PointerMove(110)
	assert.Equal(t, StateDragging, c.State())

	c.PointerMove(120)
	c.PointerUp(120)
	assert.Equal(t, StateIdle, c.State())

	assert.Empty(t, cl.clicks, "a drag must not click")
	require.Len(t, cl.pans, 2)

	// Dragging right moves the window back in time: 10px of 800px over a
	// one hour window is 45 seconds per move.
	assert.Equal(t, -45*time.Second, cl.pans[0])
	assert.Equal(t, -45*time.Second, cl.pans[1])
}

func TestDragTracksCursor(t *testing.T) {
	t.Parallel()
	c, cl := newTestController()

	c.PointerMove(50)
	c.PointerDown(50)
	c.PointerMove(60)
	c.PointerMove(70)

	assert.Equal(t, []float64{50, 60, 70}, cl.cursorXs, "hover tracking continues through a drag")
}

func TestPointerLeaveCancelsGesture(t *testing.T) {
	t.Parallel()
	c, cl := newTestController()

	c.PointerDown(100)
	c.PointerMove(150)
	require.Equal(t, StateDragging, c.State())

	c.PointerLeave()
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 1, cl.leaves)

	// A stray release after the cancel does nothing.
	c.PointerUp(150)
	assert.Empty(t, cl.clicks)
}

func TestWheelZoomAnchoredAtPointer(t *testing.T) {
	t.Parallel()
	c, cl := newTestController()

	c.Wheel(200, 3) // wheel down: zoom out
	c.Wheel(200, -1)
	c.Wheel(200, 0) // no vertical motion, no zoom

	require.Len(t, cl.zooms, 2)

	out := cl.zooms[0]
	assert.Equal(t, 1, out.steps)
	assert.InDelta(t, 0.25, out.fraction, 1e-9)
	assert.Equal(t, cl.window.Start.Add(15*time.Minute), out.anchor)

	in := cl.zooms[1]
	assert.Equal(t, -1, in.steps)
}

func TestWheelIgnoredWithoutGeometry(t *testing.T) {
	t.Parallel()
	c, cl := newTestController()
	c.SetViewWidth(0)

	c.Wheel(200, 1)
	assert.Empty(t, cl.zooms)
}

func TestTouchTapEmitsClick(t *testing.T) {
	t.Parallel()
	c, cl := newTestController()

	c.TouchStart(7, 300, 20)
	assert.Equal(t, StatePendingDrag, c.State())

	c.TouchEnd(7)
	assert.Equal(t, StateIdle, c.State())
	require.Len(t, cl.clicks, 1)
	want := cl.window.Start.Add(time.Duration(300.0 / 800.0 * float64(time.Hour)))
	assert.Equal(t, want, cl.clicks[0])
}

func TestTouchDragPans(t *testing.T) {
	t.Parallel()
	c, cl := newTestController()

	c.TouchStart(7, 300, 20)
	c.TouchMove(7, 320, 22)
	assert.Equal(t, StateDragging, c.State())

	c.TouchEnd(7)
	assert.Empty(t, cl.clicks)
	require.Len(t, cl.pans, 1)
	assert.Equal(t, -90*time.Second, cl.pans[0])
}

func TestPinchSpreadZoomsInStepwise(t *testing.T) {
	t.Parallel()
	c, cl := newTestController()

	c.TouchStart(1, 300, 100)
	c.TouchStart(2, 400, 100)
	require.Equal(t, StatePinchZooming, c.State())

	// Spread from 100px to 150px: ratio 1.5 crosses the first threshold.
	c.TouchMove(2, 450, 100)
	require.Len(t, cl.zooms, 1)
	assert.Equal(t, -1, cl.zooms[0].steps)
	assert.InDelta(t, 375.0/800.0, cl.zooms[0].fraction, 1e-9)

	// Further spread to 210px: ratio 2.1 crosses the second threshold;
	// only the increment is applied.
	c.TouchMove(2, 510, 100)
	require.Len(t, cl.zooms, 2)
	assert.Equal(t, -1, cl.zooms[1].steps)

	// Wobble that stays inside the current band applies nothing.
	c.TouchMove(2, 505, 100)
	assert.Len(t, cl.zooms, 2)
}

func TestPinchCloseZoomsOut(t *testing.T) {
	t.Parallel()
	c, cl := newTestController()

	c.TouchStart(1, 300, 100)
	c.TouchStart(2, 500, 100)

	// Closing from 200px to 50px: inverse ratio 4 clears every threshold.
	c.TouchMove(2, 350, 100)
	require.Len(t, cl.zooms, 1)
	assert.Equal(t, 3, cl.zooms[0].steps)
}

func TestSecondFingerCancelsPendingClick(t *testing.T) {
	t.Parallel()
	c, cl := newTestController()

	c.TouchStart(1, 300, 20)
	c.TouchStart(2, 400, 20)
	require.Equal(t, StatePinchZooming, c.State())

	// Lifting either finger ends the pinch without resuming the pan or
	// firing the original tap.
	c.TouchEnd(1)
	assert.Equal(t, StateIdle, c.State())
	c.TouchEnd(2)

	assert.Empty(t, cl.clicks)
	assert.Empty(t, cl.pans)
}

func TestStateString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "pending-drag", StatePendingDrag.String())
	assert.Equal(t, "dragging", StateDragging.String())
	assert.Equal(t, "pinch-zooming", StatePinchZooming.String())
}
