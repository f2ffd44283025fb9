package timeline

import "time"

// Level pairs the total visible span of one zoom step with the time
// represented by a single availability cell at that step.
type Level struct {
	Window time.Duration
	Unit   time.Duration
}

// The zoom ladder. Both columns must grow with the index: zooming in
// walks toward 0, zooming out toward the last level. Level 8 (1h window,
// 10s cells) is the default view.
var zoomLevels = []Level{
	{1 * time.Minute, 1 * time.Second},
	{2 * time.Minute, 1 * time.Second},
	{5 * time.Minute, 1 * time.Second},
	{10 * time.Minute, 2 * time.Second},
	{15 * time.Minute, 3 * time.Second},
	{20 * time.Minute, 4 * time.Second},
	{30 * time.Minute, 5 * time.Second},
	{45 * time.Minute, 10 * time.Second},
	{1 * time.Hour, 10 * time.Second},
	{2 * time.Hour, 20 * time.Second},
	{4 * time.Hour, 40 * time.Second},
	{8 * time.Hour, 60 * time.Second},
	{12 * time.Hour, 120 * time.Second},
	{24 * time.Hour, 240 * time.Second},
	{48 * time.Hour, 480 * time.Second},
	{7 * 24 * time.Hour, 1800 * time.Second},
}

// DefaultZoom is the level used when nothing else is configured.
const DefaultZoom = 8

// ZoomLevels returns a copy of the ladder.
func ZoomLevels() []Level {
	out := make([]Level, len(zoomLevels))
	copy(out, zoomLevels)
	return out
}

// ClampZoom clips an index to the valid ladder range.
func ClampZoom(index int) int {
	if index < 0 {
		return 0
	}
	if index >= len(zoomLevels) {
		return len(zoomLevels) - 1
	}
	return index
}

// WindowDuration returns the visible span at the given (clamped) level.
func WindowDuration(index int) time.Duration {
	return zoomLevels[ClampZoom(index)].Window
}

// UnitDuration returns the per-cell span at the given (clamped) level.
func UnitDuration(index int) time.Duration {
	return zoomLevels[ClampZoom(index)].Unit
}
