// Package gesture turns raw pointer, touch and wheel events into timeline
// commands, disambiguating clicks from drags and single-finger pans from
// two-finger pinches.
package gesture

import (
	"math"
	"time"

	"github.com/mmuteeullah/TimeScope/internal/timeline"
)

// State identifies where a pointer interaction currently stands.
type State int

const (
	// StateIdle means no button or finger is down.
	StateIdle State = iota
	// StatePendingDrag means the pointer is down but has not moved far
	// enough to rule out a click.
	StatePendingDrag
	// StateDragging means the threshold was crossed and the window pans
	// with the pointer.
	StateDragging
	// StatePinchZooming means two fingers are down and their distance
	// drives the zoom level.
	StatePinchZooming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePendingDrag:
		return "pending-drag"
	case StateDragging:
		return "dragging"
	case StatePinchZooming:
		return "pinch-zooming"
	default:
		return "unknown"
	}
}

// Commands is everything a gesture is allowed to do to the timeline. The
// widget engine implements it; keeping the surface narrow means the
// controller never holds a reference back into the widget.
type Commands interface {
	// Window returns the currently visible range.
	Window() timeline.TimeRange
	// PanBy shifts the window, negative values moving back in time.
	PanBy(delta time.Duration)
	// ZoomAt changes the zoom index by steps, keeping the anchor instant
	// fixed at the given horizontal fraction of the view. Positive steps
	// zoom out.
	ZoomAt(anchor time.Time, fraction float64, steps int)
	// TimeClick reports a click resolved to an instant.
	TimeClick(t time.Time)
	// CursorMoved reports the pointer hovering at a pixel position.
	CursorMoved(pixelX float64)
	// CursorLeft reports the pointer leaving the view.
	CursorLeft()
}

// DefaultDragThreshold is the movement in pixels below which a press and
// release still counts as a click.
const DefaultDragThreshold = 5.0

// pinchSteps maps a two-finger distance ratio to zoom steps; crossing
// each threshold adds one step.
var pinchSteps = []struct {
	ratio float64
	steps int
}{
	{2.8, 3},
	{2.0, 2},
	{1.4, 1},
}

type touchPoint struct {
	x, y float64
}

// Controller is the gesture state machine. It is not safe for concurrent
// use; feed it from a single input loop.
type Controller struct {
	cmds      Commands
	threshold float64

	width float64
	state State

	startX      float64
	lastX       float64
	startWindow timeline.TimeRange

	touches        map[int]touchPoint
	touchOrder     []int
	primaryID      int
	pinchStartDist float64
	pinchApplied   int
}

// NewController wires a controller to its command sink. thresholdPx of
// zero or less falls back to the default.
func NewController(cmds Commands, thresholdPx float64) *Controller {
	if thresholdPx <= 0 {
		thresholdPx = DefaultDragThreshold
	}
	return &Controller{
		cmds:      cmds,
		threshold: thresholdPx,
		touches:   make(map[int]touchPoint),
	}
}

// State returns the current gesture state.
func (c *Controller) State() State {
	return c.state
}

// SetViewWidth tells the controller how wide the view is in pixels. Pan
// and click mapping need it; zero disables both until geometry recovers.
func (c *Controller) SetViewWidth(w float64) {
	c.width = w
}

// PointerDown begins a possible click or drag at the given pixel.
func (c *Controller) PointerDown(x float64) {
	if c.state == StatePinchZooming {
		return
	}
	c.state = StatePendingDrag
	c.startX = x
	c.lastX = x
	c.startWindow = c.cmds.Window()
}

// PointerMove advances the state machine and keeps the hover cursor
// current.
func (c *Controller) PointerMove(x float64) {
	c.cmds.CursorMoved(x)

	switch c.state {
	case StatePendingDrag:
		if math.Abs(x-c.startX) > c.threshold {
			c.state = StateDragging
			// Catch up with the distance covered while pending so the
			// view does not jump a dead zone behind the finger.
			c.pan(x - c.startX)
			c.lastX = x
		}
	case StateDragging:
		c.pan(x - c.lastX)
		c.lastX = x
	}
}

// PointerUp ends the gesture. A release inside the threshold is a click
// at the mapped instant; a drag ends silently.
func (c *Controller) PointerUp(x float64) {
	prev := c.state
	c.state = StateIdle

	if prev != StatePendingDrag || math.Abs(x-c.startX) > c.threshold {
		return
	}
	if t, ok := timeline.TimeAtPixel(x, c.width, c.cmds.Window()); ok {
		c.cmds.TimeClick(t)
	}
}

// PointerLeave cancels any gesture in progress and hides the cursor.
func (c *Controller) PointerLeave() {
	c.state = StateIdle
	c.cmds.CursorLeft()
}

// Wheel zooms one step per event, anchored at the pointer so the instant
// under it stays fixed. Positive deltaY (wheel down) zooms out.
func (c *Controller) Wheel(x, deltaY float64) {
	if deltaY == 0 || c.width <= 0 {
		return
	}
	steps := 1
	if deltaY < 0 {
		steps = -1
	}
	c.zoomAnchored(x, steps)
}

// TouchStart registers a finger. The first finger behaves like a mouse
// press; a second one switches to pinch zooming.
func (c *Controller) TouchStart(id int, x, y float64) {
	if _, ok := c.touches[id]; !ok {
		c.touches[id] = touchPoint{x: x, y: y}
		c.touchOrder = append(c.touchOrder, id)
	} else {
		c.touches[id] = touchPoint{x: x, y: y}
	}

	switch len(c.touchOrder) {
	case 1:
		c.primaryID = id
		c.PointerDown(x)
	case 2:
		c.state = StatePinchZooming
		c.pinchStartDist = c.pinchDistance()
		c.pinchApplied = 0
	}
}

// TouchMove updates a finger position, panning or pinching as the state
// dictates. Extra fingers beyond the first two are tracked but inert.
func (c *Controller) TouchMove(id int, x, y float64) {
	if _, ok := c.touches[id]; !ok {
		return
	}
	c.touches[id] = touchPoint{x: x, y: y}

	if c.state == StatePinchZooming {
		c.pinchMove()
		return
	}
	if id == c.primaryID {
		c.PointerMove(x)
	}
}

// TouchEnd lifts a finger. Ending the primary finger resolves the click
// or drag; dropping below two fingers ends a pinch without resuming a
// pan.
func (c *Controller) TouchEnd(id int) {
	if _, ok := c.touches[id]; !ok {
		return
	}
	delete(c.touches, id)
	for i, tid := range c.touchOrder {
		if tid == id {
			c.touchOrder = append(c.touchOrder[:i], c.touchOrder[i+1:]...)
			break
		}
	}

	switch c.state {
	case StatePinchZooming:
		if len(c.touchOrder) < 2 {
			c.state = StateIdle
		}
	case StatePendingDrag, StateDragging:
		if id == c.primaryID {
			c.PointerUp(c.lastX)
		}
	}
}

// pan shifts the window opposite to the pointer movement so content
// follows the finger.
func (c *Controller) pan(deltaPixels float64) {
	if c.width <= 0 {
		return
	}
	dur := c.cmds.Window().Duration()
	delta := time.Duration(deltaPixels / c.width * float64(dur))
	c.cmds.PanBy(-delta)
}

// zoomAnchored maps the pixel to its instant and fraction, then delegates.
func (c *Controller) zoomAnchored(x float64, steps int) {
	anchor, ok := timeline.TimeAtPixel(x, c.width, c.cmds.Window())
	if !ok {
		return
	}
	c.cmds.ZoomAt(anchor, x/c.width, steps)
}

// pinchMove converts the distance ratio since the pinch began into zoom
// steps, applying only the increment past what this pinch already did.
func (c *Controller) pinchMove() {
	if c.pinchStartDist <= 0 || c.width <= 0 {
		return
	}
	ratio := c.pinchDistance() / c.pinchStartDist
	want := stepsForRatio(ratio)
	if want == c.pinchApplied {
		return
	}
	steps := want - c.pinchApplied
	c.pinchApplied = want
	c.zoomAnchored(c.pinchMidX(), steps)
}

// pinchDistance is the distance between the first two fingers.
func (c *Controller) pinchDistance() float64 {
	if len(c.touchOrder) < 2 {
		return 0
	}
	a := c.touches[c.touchOrder[0]]
	b := c.touches[c.touchOrder[1]]
	return math.Hypot(a.x-b.x, a.y-b.y)
}

// pinchMidX is the horizontal midpoint of the pinch, used as the zoom
// anchor.
func (c *Controller) pinchMidX() float64 {
	a := c.touches[c.touchOrder[0]]
	b := c.touches[c.touchOrder[1]]
	return (a.x + b.x) / 2
}

// stepsForRatio looks up how many zoom steps a pinch ratio is worth.
// Spreading fingers (ratio above one) zooms in, so steps are negative;
// closing them zooms out.
func stepsForRatio(ratio float64) int {
	if ratio <= 0 {
		return 0
	}
	closing := ratio < 1
	if closing {
		ratio = 1 / ratio
	}
	steps := 0
	for _, ps := range pinchSteps {
		if ratio >= ps.ratio {
			steps = ps.steps
			break
		}
	}
	if closing {
		return steps
	}
	return -steps
}
