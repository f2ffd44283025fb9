// Package ebitenui is the native front-end for the timeline widget: an
// ebiten game that feeds window input into the gesture controller and
// hands the engine's render loop a real drawing surface once per frame.
package ebitenui

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/mmuteeullah/TimeScope/internal/render"
	"github.com/mmuteeullah/TimeScope/internal/widget"
)

// Options configures the window.
type Options struct {
	Title     string
	Width     int // logical pixels
	Height    int
	ShowStats bool
}

// App drives one widget engine inside an ebiten window. Update pumps
// input, Draw runs the queued render-loop frame against the screen.
type App struct {
	engine *widget.Engine
	frames *render.FrameQueue
	canvas *screenCanvas
	loop   *render.Loop
	logger *log.Logger

	runCtx    context.Context
	opts      Options
	width     int // logical, from Layout
	height    int
	inside    bool
	touchSeen bool
	touchIDs  []ebiten.TouchID
}

// New wires an app to the engine. It attaches the renderer, so call it
// before Engine.Start.
func New(ctx context.Context, engine *widget.Engine, opts Options) *App {
	if opts.Width <= 0 {
		opts.Width = 1280
	}
	if opts.Height <= 0 {
		opts.Height = 240
	}
	a := &App{
		engine: engine,
		frames: render.NewFrameQueue(),
		canvas: newScreenCanvas(),
		logger: log.New(os.Stdout, "[UI] ", log.LstdFlags),
		runCtx: ctx,
		opts:   opts,
		width:  opts.Width,
		height: opts.Height,
	}
	a.loop = engine.AttachRenderer(a.frames, a.canvas)
	return a
}

// Run opens the window and blocks until it closes or the context is
// cancelled. Must be called from the main goroutine.
func (a *App) Run() error {
	ebiten.SetWindowSize(a.opts.Width, a.opts.Height)
	ebiten.SetWindowTitle(a.opts.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	a.logger.Printf("Opening window %dx%d", a.opts.Width, a.opts.Height)
	if err := ebiten.RunGame(a); err != nil && err != ebiten.Termination {
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}

// Update pumps input into the gesture controller. Part of ebiten.Game.
func (a *App) Update() error {
	if a.runCtx.Err() != nil {
		return ebiten.Termination
	}

	scale := ebiten.Monitor().DeviceScaleFactor()
	a.canvas.setScale(scale)
	a.engine.SetViewWidth(float64(a.width) * scale)

	a.pumpTouch()
	if len(a.touchIDs) == 0 {
		a.pumpMouse()
	}
	return nil
}

// Draw runs the frame the render loop queued and, optionally, the stats
// overlay. Part of ebiten.Game.
func (a *App) Draw(screen *ebiten.Image) {
	a.canvas.begin(screen)
	a.frames.Run(time.Now())
	a.canvas.end()

	if a.opts.ShowStats {
		a.drawStats(screen)
	}
}

// Layout sizes the drawable area in device pixels so sub-pixel geometry
// stays sharp on high-density displays. Part of ebiten.Game.
func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	a.width, a.height = outsideWidth, outsideHeight
	s := ebiten.Monitor().DeviceScaleFactor()
	if s <= 0 {
		s = 1
	}
	return int(float64(outsideWidth) * s), int(float64(outsideHeight) * s)
}

// pumpMouse forwards cursor, button and wheel state.
func (a *App) pumpMouse() {
	g := a.engine.Gestures()
	x, y := ebiten.CursorPosition()
	fx := float64(x)

	scale := a.canvas.Scale()
	w := float64(a.width) * scale
	h := float64(a.height) * scale
	inside := x >= 0 && y >= 0 && float64(x) < w && float64(y) < h
	if !inside {
		if a.inside {
			g.PointerLeave()
		}
		a.inside = false
		return
	}
	a.inside = true

	switch {
	case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft):
		g.PointerDown(fx)
	case inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft):
		g.PointerUp(fx)
	default:
		g.PointerMove(fx)
	}

	// Browser-style wheel semantics: positive deltaY zooms out. Ebiten
	// reports wheel-up as positive, so the sign flips.
	if _, dy := ebiten.Wheel(); dy != 0 {
		g.Wheel(fx, -dy)
	}
}

// pumpTouch forwards finger lifecycle events. The first touch ever seen
// switches the renderer to touch mode, hiding the hover cursor.
func (a *App) pumpTouch() {
	g := a.engine.Gestures()

	for _, id := range inpututil.AppendJustPressedTouchIDs(nil) {
		x, y := ebiten.TouchPosition(id)
		g.TouchStart(int(id), float64(x), float64(y))
		if !a.touchSeen {
			a.touchSeen = true
			a.loop.SetTouchUI(true)
			a.logger.Println("Touch input detected")
		}
	}

	a.touchIDs = ebiten.AppendTouchIDs(a.touchIDs[:0])
	for _, id := range a.touchIDs {
		x, y := ebiten.TouchPosition(id)
		g.TouchMove(int(id), float64(x), float64(y))
	}

	for _, id := range inpututil.AppendJustReleasedTouchIDs(nil) {
		g.TouchEnd(int(id))
	}
}

// drawStats paints the debug overlay.
func (a *App) drawStats(screen *ebiten.Image) {
	st := a.engine.Stats()
	lines := fmt.Sprintf(
		"fps %.0f  frames %d  mode %s  zoom %d  gesture %s\nwindow %s - %s  loading %v",
		ebiten.ActualFPS(), st.Frames, st.Mode, st.Zoom, st.Gesture,
		st.Window.Start.Format("15:04:05"), st.Window.End.Format("15:04:05"), st.Loading,
	)
	ebitenutil.DebugPrintAt(screen, lines, 8, 8)
}
