// Package fragments maintains the availability bitmap for a recording
// channel: which time cells have video and which are gaps. The cache keeps
// a buffer wider than the visible window and refreshes it asynchronously,
// coalescing bursts of navigation into at most one fetch in flight.
package fragments

import (
	"time"

	"github.com/mmuteeullah/TimeScope/internal/timeline"
)

// Bitmap is an ordered sequence of availability cells, one per unit of
// time, 0 for no recording and 1 for recording present.
type Bitmap []uint8

// At reports whether the cell at index i marks recorded video. Out of
// range indexes read as empty.
func (b Bitmap) At(i int) bool {
	return i >= 0 && i < len(b) && b[i] != 0
}

// CellCount returns how many unit-sized cells cover the range. The last
// cell may extend past the range end when the duration is not an exact
// multiple of the unit.
func CellCount(r timeline.TimeRange, unit time.Duration) int {
	if unit <= 0 || !r.IsValid() {
		return 0
	}
	d := r.Duration()
	n := int(d / unit)
	if d%unit != 0 {
		n++
	}
	return n
}
