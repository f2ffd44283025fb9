// Package store derives availability bitmaps from a recording tree on
// the local filesystem. Segments live under
// basePath/channel/recordings/YYYY-MM-DD/HH-MM-SS.ts and each covers a
// fixed duration; a segment overlapping a cell marks it as available.
package store

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mmuteeullah/TimeScope/internal/fragments"
	"github.com/mmuteeullah/TimeScope/internal/timeline"
)

// Store reads availability from a recording tree. It implements
// fragments.Querier and fragments.ServerClock for local playback.
type Store struct {
	basePath string
	segDur   time.Duration
	logger   *log.Logger
}

// ChannelInfo summarizes one channel directory.
type ChannelInfo struct {
	Name      string `json:"name"`
	Days      int    `json:"days_stored"`
	FirstDate string `json:"first_date,omitempty"`
	LastDate  string `json:"last_date,omitempty"`
}

// New creates a store over basePath with the given seconds per segment
// file.
func New(basePath string, segmentSeconds int) *Store {
	if segmentSeconds <= 0 {
		segmentSeconds = 1800
	}
	return &Store{
		basePath: basePath,
		segDur:   time.Duration(segmentSeconds) * time.Second,
		logger:   log.New(os.Stdout, "[Store] ", log.LstdFlags),
	}
}

// Availability scans the date directories overlapping the query range and
// marks every cell touched by a segment. With a filter set, segments
// whose motion sidecar scores below the threshold, or whose motion box
// misses the filter region, count as absent.
func (s *Store) Availability(_ context.Context, q fragments.Query) (fragments.Bitmap, error) {
	r := timeline.NewRange(q.Start, q.End)
	if !r.IsValid() {
		return nil, fmt.Errorf("invalid query range %v - %v", q.Start, q.End)
	}
	if q.Unit <= 0 {
		return nil, fmt.Errorf("invalid unit %v", q.Unit)
	}
	if q.Channel == "" {
		return nil, fmt.Errorf("channel is required")
	}

	bm := make(fragments.Bitmap, fragments.CellCount(r, q.Unit))

	start := q.Start.Local()
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	for ; day.Before(q.End); day = day.AddDate(0, 0, 1) {
		if err := s.scanDay(day, q, r, bm); err != nil {
			return nil, err
		}
	}
	return bm, nil
}

// scanDay marks cells for one date directory. A missing directory is an
// empty day, not an error.
func (s *Store) scanDay(day time.Time, q fragments.Query, r timeline.TimeRange, bm fragments.Bitmap) error {
	dir := filepath.Join(s.basePath, q.Channel, "recordings", day.Format("2006-01-02"))
	files, err := filepath.Glob(filepath.Join(dir, "*.ts"))
	if err != nil {
		return fmt.Errorf("listing segments in %s: %w", dir, err)
	}

	for _, file := range files {
		segStart, ok := segmentStart(day, filepath.Base(file))
		if !ok {
			continue
		}
		segEnd := segStart.Add(s.segDur)
		if !segStart.Before(r.End) || !segEnd.After(r.Start) {
			continue
		}
		if q.Filter != nil && !s.motionMatches(file, q.Filter) {
			continue
		}
		markCells(bm, r, q.Unit, segStart, segEnd)
	}
	return nil
}

// ServerTime reports the local wall clock; in local mode the recorder
// and the player share it.
func (s *Store) ServerTime(_ context.Context) (time.Time, error) {
	return time.Now(), nil
}

// Channels lists the channel directories holding at least one recording
// date, with their date bounds.
func (s *Store) Channels() ([]ChannelInfo, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("reading storage root: %w", err)
	}

	var out []ChannelInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dates := s.recordingDates(entry.Name())
		if len(dates) == 0 {
			continue
		}
		out = append(out, ChannelInfo{
			Name:      entry.Name(),
			Days:      len(dates),
			FirstDate: dates[0],
			LastDate:  dates[len(dates)-1],
		})
	}
	return out, nil
}

// recordingDates returns the sorted YYYY-MM-DD directory names under a
// channel's recordings folder.
func (s *Store) recordingDates(channel string) []string {
	entries, err := os.ReadDir(filepath.Join(s.basePath, channel, "recordings"))
	if err != nil {
		return nil
	}
	var dates []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || len(name) != 10 {
			continue
		}
		if _, err := time.Parse("2006-01-02", name); err != nil {
			continue
		}
		dates = append(dates, name)
	}
	sort.Strings(dates)
	return dates
}

// motionMatches checks the segment's sidecar against the filter. The
// sidecar holds "score" or "score x0 y0 x1 y1" on its first line; no
// sidecar means no motion was detected for the segment.
func (s *Store) motionMatches(segPath string, f *fragments.Filter) bool {
	score, box, ok := readMotionSidecar(sidecarPath(segPath))
	if !ok {
		return false
	}
	if score < f.MinScore {
		return false
	}
	if f.Region != nil && box != nil && !f.Region.Overlaps(*box) {
		return false
	}
	return true
}

func sidecarPath(segPath string) string {
	return strings.TrimSuffix(segPath, filepath.Ext(segPath)) + ".motion"
}

func readMotionSidecar(path string) (score float64, box *image.Rectangle, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return 0, nil, false
	}
	fields := strings.Fields(scanner.Text())
	if len(fields) == 0 {
		return 0, nil, false
	}
	score, err = strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, nil, false
	}
	if len(fields) >= 5 {
		coords := make([]int, 4)
		for i := 0; i < 4; i++ {
			v, err := strconv.Atoi(fields[i+1])
			if err != nil {
				return score, nil, true
			}
			coords[i] = v
		}
		r := image.Rect(coords[0], coords[1], coords[2], coords[3])
		box = &r
	}
	return score, box, true
}

// segmentStart parses the HH-MM-SS.ts filename into an instant on the
// given day.
func segmentStart(day time.Time, filename string) (time.Time, bool) {
	name := strings.TrimSuffix(filename, ".ts")
	if len(name) != 8 {
		return time.Time{}, false
	}
	clock, err := time.Parse("15-04-05", name)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, day.Location()), true
}

// markCells sets every cell the [segStart, segEnd) interval touches.
func markCells(bm fragments.Bitmap, r timeline.TimeRange, unit time.Duration, segStart, segEnd time.Time) {
	if segStart.Before(r.Start) {
		segStart = r.Start
	}
	if segEnd.After(r.End) {
		segEnd = r.End
	}
	first := int(segStart.Sub(r.Start) / unit)
	last := int((segEnd.Sub(r.Start) + unit - 1) / unit)
	if last > len(bm) {
		last = len(bm)
	}
	for i := first; i < last; i++ {
		bm[i] = 1
	}
}
