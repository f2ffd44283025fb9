// Package render drives the continuous draw loop that paints the
// timeline: gridlines, availability bars, playback progress and the
// hover cursor, reading whatever state is current each frame.
package render

import "image/color"

// Canvas is the drawing surface. All coordinates and sizes are in device
// pixels; implementations report the scale they were sized with so line
// widths can stay crisp on high-density displays.
type Canvas interface {
	// Size returns the drawable area in device pixels. A zero width or
	// height means the surface is not ready and the frame is skipped.
	Size() (w, h float64)
	// Scale returns the device pixel ratio of the surface.
	Scale() float64
	// FillRect paints an axis-aligned rectangle.
	FillRect(x, y, w, h float64, c color.Color)
	// StrokeLine draws a straight line segment of the given width.
	StrokeLine(x0, y0, x1, y1, width float64, c color.Color)
	// Text draws a small label with its top-left corner at (x, y).
	Text(s string, x, y float64, c color.Color)
}

// Theme is the palette for one timeline rendering.
type Theme struct {
	Background color.Color
	GridLine   color.Color
	GridLabel  color.Color
	UnitTick   color.Color
	Available  color.Color
	Progress   color.Color
	NowLine    color.Color
	CursorLine color.Color
	CursorText color.Color
}

// DefaultTheme returns the dark palette used by the playback page.
func DefaultTheme() Theme {
	return Theme{
		Background: color.NRGBA{R: 18, G: 20, B: 26, A: 255},
		GridLine:   color.NRGBA{R: 52, G: 56, B: 66, A: 255},
		GridLabel:  color.NRGBA{R: 152, G: 158, B: 170, A: 255},
		UnitTick:   color.NRGBA{R: 38, G: 41, B: 49, A: 255},
		Available:  color.NRGBA{R: 52, G: 168, B: 83, A: 255},
		Progress:   color.NRGBA{R: 66, G: 133, B: 244, A: 90},
		NowLine:    color.NRGBA{R: 234, G: 67, B: 53, A: 255},
		CursorLine: color.NRGBA{R: 232, G: 234, B: 237, A: 200},
		CursorText: color.NRGBA{R: 232, G: 234, B: 237, A: 255},
	}
}
