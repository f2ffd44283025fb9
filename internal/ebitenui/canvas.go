package ebitenui

import (
	"image/color"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// screenCanvas adapts the ebiten screen image to the render.Canvas
// interface. The screen is only valid while a Draw call is running;
// outside of it the canvas reports zero size and the render loop skips
// the frame.
type screenCanvas struct {
	mu     sync.Mutex
	screen *ebiten.Image
	scale  float64
}

func newScreenCanvas() *screenCanvas {
	return &screenCanvas{scale: 1}
}

// begin points the canvas at the screen for the duration of one Draw.
func (c *screenCanvas) begin(screen *ebiten.Image) {
	c.mu.Lock()
	c.screen = screen
	c.mu.Unlock()
}

// end detaches the screen again.
func (c *screenCanvas) end() {
	c.mu.Lock()
	c.screen = nil
	c.mu.Unlock()
}

func (c *screenCanvas) setScale(s float64) {
	c.mu.Lock()
	if s > 0 {
		c.scale = s
	}
	c.mu.Unlock()
}

// Size returns the drawable area in device pixels, zero outside Draw.
func (c *screenCanvas) Size() (float64, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.screen == nil {
		return 0, 0
	}
	b := c.screen.Bounds()
	return float64(b.Dx()), float64(b.Dy())
}

// Scale returns the device pixel ratio the surface was sized with.
func (c *screenCanvas) Scale() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scale
}

// FillRect paints an axis-aligned rectangle.
func (c *screenCanvas) FillRect(x, y, w, h float64, col color.Color) {
	if c.screen == nil {
		return
	}
	vector.DrawFilledRect(c.screen, float32(x), float32(y), float32(w), float32(h), col, false)
}

// StrokeLine draws a line segment of the given width.
func (c *screenCanvas) StrokeLine(x0, y0, x1, y1, width float64, col color.Color) {
	if c.screen == nil {
		return
	}
	vector.StrokeLine(c.screen, float32(x0), float32(y0), float32(x1), float32(y1), float32(width), col, true)
}

// Text draws a small label with the debug face. The face renders in a
// fixed color, so the requested color only picks whether to draw at all.
func (c *screenCanvas) Text(s string, x, y float64, col color.Color) {
	if c.screen == nil {
		return
	}
	if _, _, _, a := col.RGBA(); a == 0 {
		return
	}
	ebitenutil.DebugPrintAt(c.screen, s, int(x), int(y))
}
