package fragments

import (
	"context"
	"image"
	"time"
)

// Query describes one availability lookup against the recording backend:
// which cells in [Start, End) hold video for the channel, one cell per
// Unit of time.
type Query struct {
	Start   time.Time
	End     time.Time
	Unit    time.Duration
	Channel string
	Filter  *Filter
}

// Filter narrows availability to recordings whose motion analysis matched
// the criteria. A nil Filter means all recordings count.
type Filter struct {
	// MinScore is the minimum motion score a segment must have reached.
	MinScore float64
	// Region restricts matches to motion inside this area of the frame.
	// Nil means the whole frame.
	Region *image.Rectangle
}

// Equal reports whether two filters select the same recordings. Either
// side may be nil.
func (f *Filter) Equal(other *Filter) bool {
	if f == nil || other == nil {
		return f == other
	}
	if f.MinScore != other.MinScore {
		return false
	}
	if (f.Region == nil) != (other.Region == nil) {
		return false
	}
	return f.Region == nil || *f.Region == *other.Region
}

// Querier answers availability queries. Implementations must be
// idempotent and side-effect free; the cache may drop results at will.
type Querier interface {
	Availability(ctx context.Context, q Query) (Bitmap, error)
}

// ServerClock reports the authoritative current time on the recording
// system, used to seed window centering and the playback baseline.
type ServerClock interface {
	ServerTime(ctx context.Context) (time.Time, error)
}
