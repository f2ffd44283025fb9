// Package timeline holds the visible-window state of the playback
// timeline: the time range currently on screen, the discrete zoom ladder,
// and the pixel<->time mapping used by input handling and rendering.
package timeline

import "time"

// TimeRange is a half-open [Start, End) interval of wall-clock time.
// Ranges are immutable values; operations return a new range.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// NewRange builds a range from two instants.
func NewRange(start, end time.Time) TimeRange {
	return TimeRange{Start: start, End: end}
}

// Duration returns End - Start.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// IsValid reports whether the range has non-zero endpoints and positive duration.
func (r TimeRange) IsValid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && r.End.After(r.Start)
}

// IsZero reports whether the range is the empty sentinel.
func (r TimeRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Equal reports whether both endpoints match exactly.
func (r TimeRange) Equal(o TimeRange) bool {
	return r.Start.Equal(o.Start) && r.End.Equal(o.End)
}

// Contains reports whether o lies entirely within r.
func (r TimeRange) Contains(o TimeRange) bool {
	return !r.Start.After(o.Start) && !r.End.Before(o.End)
}

// ContainsTime reports whether t falls inside [Start, End).
func (r TimeRange) ContainsTime(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Shift moves both endpoints by d, preserving duration.
func (r TimeRange) Shift(d time.Duration) TimeRange {
	return TimeRange{Start: r.Start.Add(d), End: r.End.Add(d)}
}

// Expand widens the range by d on each side.
func (r TimeRange) Expand(d time.Duration) TimeRange {
	return TimeRange{Start: r.Start.Add(-d), End: r.End.Add(d)}
}

// Mid returns the midpoint instant of the range.
func (r TimeRange) Mid() time.Time {
	return r.Start.Add(r.Duration() / 2)
}

// Centered returns a range of the given duration centered on t.
func Centered(t time.Time, d time.Duration) TimeRange {
	half := d / 2
	return TimeRange{Start: t.Add(-half), End: t.Add(d - half)}
}
