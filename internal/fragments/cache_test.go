package fragments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmuteeullah/TimeScope/internal/timeline"
)

// recordingQuerier answers immediately, recording every query it sees.
type recordingQuerier struct {
	mu     sync.Mutex
	calls  []Query
	bitmap Bitmap // fixed payload when set, otherwise generated per query
	fill   uint8
	err    error
}

func (q *recordingQuerier) Availability(_ context.Context, query Query) (Bitmap, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls = append(q.calls, query)
	if q.err != nil {
		return nil, q.err
	}
	if q.bitmap != nil {
		return q.bitmap, nil
	}
	n := CellCount(timeline.NewRange(query.Start, query.End), query.Unit)
	bm := make(Bitmap, n)
	for i := range bm {
		bm[i] = q.fill
	}
	return bm, nil
}

func (q *recordingQuerier) setErr(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.err = err
}

func (q *recordingQuerier) callCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.calls)
}

func (q *recordingQuerier) call(i int) Query {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls[i]
}

// gatedQuerier blocks each fetch until the test releases it, so tests can
// interleave requests with an in-flight fetch deterministically.
type gatedQuerier struct {
	mu      sync.Mutex
	calls   []Query
	started chan Query
	release chan gatedResult
}

type gatedResult struct {
	cells Bitmap
	err   error
}

func newGatedQuerier() *gatedQuerier {
	return &gatedQuerier{
		started: make(chan Query),
		release: make(chan gatedResult),
	}
}

func (q *gatedQuerier) Availability(_ context.Context, query Query) (Bitmap, error) {
	q.mu.Lock()
	q.calls = append(q.calls, query)
	q.mu.Unlock()
	q.started <- query
	res := <-q.release
	return res.cells, res.err
}

func (q *gatedQuerier) awaitStart(t *testing.T) Query {
	t.Helper()
	select {
	case query := <-q.started:
		return query
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a fetch to start")
		return Query{}
	}
}

func (q *gatedQuerier) finish(cells Bitmap, err error) {
	q.release <- gatedResult{cells: cells, err: err}
}

func (q *gatedQuerier) callCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.calls)
}

// fullBitmap builds a correctly sized all-ones payload for a query.
func fullBitmap(q Query) Bitmap {
	n := CellCount(timeline.NewRange(q.Start, q.End), q.Unit)
	bm := make(Bitmap, n)
	for i := range bm {
		bm[i] = 1
	}
	return bm
}

// waitIdle blocks until no fetch is running, then returns the state.
func waitIdle(t *testing.T, c *Cache) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		return !c.Snapshot().Loading
	}, 2*time.Second, 2*time.Millisecond)
	return c.Snapshot()
}

func TestRequestRangeExpandsByBufferScreens(t *testing.T) {
	q := &recordingQuerier{fill: 1}
	c := NewCache(q, "cam-front", 3)

	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	visible := timeline.NewRange(t0, t0.Add(time.Hour))
	c.RequestRange(context.Background(), visible, 8)

	snap := waitIdle(t, c)
	require.Equal(t, 1, q.callCount())

	// One hour visible with three buffer screens per side makes a seven
	// hour buffer at ten second cells.
	call := q.call(0)
	assert.Equal(t, t0.Add(-3*time.Hour), call.Start)
	assert.Equal(t, t0.Add(4*time.Hour), call.End)
	assert.Equal(t, 10*time.Second, call.Unit)
	assert.Equal(t, "cam-front", call.Channel)
	assert.Nil(t, call.Filter)

	assert.Equal(t, 2520, len(snap.Cells))
	assert.True(t, snap.Buffered.Equal(timeline.NewRange(t0.Add(-3*time.Hour), t0.Add(4*time.Hour))))
	assert.Equal(t, 10*time.Second, snap.Unit)
}

func TestCoverageIdempotence(t *testing.T) {
	q := &recordingQuerier{fill: 1}
	c := NewCache(q, "cam-front", 3)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	visible := timeline.NewRange(t0, t0.Add(time.Hour))
	c.RequestRange(ctx, visible, 8)
	waitIdle(t, c)
	require.Equal(t, 1, q.callCount())

	// The identical request and a strict sub-range at the same unit are
	// both already covered.
	c.RequestRange(ctx, visible, 8)
	c.RequestRange(ctx, timeline.NewRange(t0.Add(10*time.Minute), t0.Add(50*time.Minute)), 8)
	assert.Equal(t, 1, q.callCount(), "covered requests must not refetch")
	assert.False(t, c.Snapshot().Loading)

	// A different zoom changes the cell unit, which always reloads.
	c.RequestRange(ctx, visible, 9)
	waitIdle(t, c)
	assert.Equal(t, 2, q.callCount())
}

func TestSupersessionFinalStateMatchesNewest(t *testing.T) {
	q := newGatedQuerier()
	c := NewCache(q, "cam-front", 3)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	visibleA := timeline.NewRange(t0, t0.Add(time.Hour))
	visibleB := timeline.NewRange(t0.Add(24*time.Hour), t0.Add(25*time.Hour))

	c.RequestRange(ctx, visibleA, 8)
	reqA := q.awaitStart(t)

	// B arrives while A is still on the wire. A is left to finish but its
	// payload, full of data, must never become visible.
	c.RequestRange(ctx, visibleB, 8)
	q.finish(fullBitmap(reqA), nil)

	reqB := q.awaitStart(t)
	assert.Equal(t, t0.Add(21*time.Hour), reqB.Start)
	assert.Equal(t, t0.Add(28*time.Hour), reqB.End)
	q.finish(fullBitmap(reqB), nil)

	snap := waitIdle(t, c)
	wantB := timeline.NewRange(t0.Add(21*time.Hour), t0.Add(28*time.Hour))
	assert.True(t, snap.Buffered.Equal(wantB), "cache must hold the newest range, got %v-%v", snap.Buffered.Start, snap.Buffered.End)
	assert.Equal(t, 2, q.callCount())
}

func TestQueueDepthOneNewestWins(t *testing.T) {
	q := newGatedQuerier()
	c := NewCache(q, "cam-front", 3)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	visibleA := timeline.NewRange(t0, t0.Add(time.Hour))
	visibleB := timeline.NewRange(t0.Add(24*time.Hour), t0.Add(25*time.Hour))
	visibleC := timeline.NewRange(t0.Add(48*time.Hour), t0.Add(49*time.Hour))

	c.RequestRange(ctx, visibleA, 8)
	reqA := q.awaitStart(t)

	// Two more requests land mid-flight; only the last survives the queue.
	c.RequestRange(ctx, visibleB, 8)
	c.RequestRange(ctx, visibleC, 8)
	c.RequestRange(ctx, visibleC, 8) // identical to the queued one, deduplicated

	q.finish(fullBitmap(reqA), nil)

	reqNext := q.awaitStart(t)
	assert.Equal(t, t0.Add(45*time.Hour), reqNext.Start, "B must have been displaced by C")
	q.finish(fullBitmap(reqNext), nil)

	snap := waitIdle(t, c)
	assert.True(t, snap.Buffered.Equal(timeline.NewRange(t0.Add(45*time.Hour), t0.Add(52*time.Hour))))
	assert.Equal(t, 2, q.callCount(), "B was never fetched")
}

func TestDuplicateInFlightDeduplicated(t *testing.T) {
	q := newGatedQuerier()
	c := NewCache(q, "cam-front", 3)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	visible := timeline.NewRange(t0, t0.Add(time.Hour))

	c.RequestRange(ctx, visible, 8)
	reqA := q.awaitStart(t)

	// Same tuple again while in flight: nothing to queue.
	c.RequestRange(ctx, visible, 8)

	q.finish(fullBitmap(reqA), nil)
	waitIdle(t, c)
	assert.Equal(t, 1, q.callCount())
}

func TestFetchErrorKeepsPreviousBitmap(t *testing.T) {
	q := &recordingQuerier{fill: 1}
	c := NewCache(q, "cam-front", 3)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	visible := timeline.NewRange(t0, t0.Add(time.Hour))
	c.RequestRange(ctx, visible, 8)
	good := waitIdle(t, c)
	require.True(t, good.Buffered.IsValid())

	// The backend goes away; a pan outside the buffer now fails.
	q.setErr(errors.New("query availability: connection refused"))
	c.RequestRange(ctx, timeline.NewRange(t0.Add(24*time.Hour), t0.Add(25*time.Hour)), 8)

	snap := waitIdle(t, c)
	assert.True(t, snap.Buffered.Equal(good.Buffered), "stale data must survive a failed fetch")
	assert.Equal(t, len(good.Cells), len(snap.Cells))
	assert.False(t, snap.Loading)
}

func TestFetchErrorRetriesQueuedRequest(t *testing.T) {
	q := newGatedQuerier()
	c := NewCache(q, "cam-front", 3)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	visibleA := timeline.NewRange(t0, t0.Add(time.Hour))
	visibleB := timeline.NewRange(t0.Add(24*time.Hour), t0.Add(25*time.Hour))

	c.RequestRange(ctx, visibleA, 8)
	q.awaitStart(t)
	c.RequestRange(ctx, visibleB, 8)

	// A fails; the queued B must start immediately rather than being lost.
	q.finish(nil, errors.New("timeout"))

	reqB := q.awaitStart(t)
	assert.Equal(t, t0.Add(21*time.Hour), reqB.Start)
	q.finish(fullBitmap(reqB), nil)

	snap := waitIdle(t, c)
	assert.True(t, snap.Buffered.Equal(timeline.NewRange(t0.Add(21*time.Hour), t0.Add(28*time.Hour))))
}

func TestResetInvalidatesInFlightResult(t *testing.T) {
	q := newGatedQuerier()
	c := NewCache(q, "cam-front", 3)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	visible := timeline.NewRange(t0, t0.Add(time.Hour))

	c.RequestRange(ctx, visible, 8)
	reqA := q.awaitStart(t)

	c.Reset()
	q.finish(fullBitmap(reqA), nil)

	snap := waitIdle(t, c)
	assert.False(t, snap.Buffered.IsValid(), "result landing after a reset must be dropped")
	assert.Empty(t, snap.Cells)

	// The same range reloads on the next request despite having just been
	// fetched: reset bypasses the coverage check.
	c.RequestRange(ctx, visible, 8)
	reqA2 := q.awaitStart(t)
	q.finish(fullBitmap(reqA2), nil)

	snap = waitIdle(t, c)
	assert.True(t, snap.Buffered.IsValid())
	assert.Equal(t, 2, q.callCount())
}

func TestFilterChangeMidFlight(t *testing.T) {
	q := newGatedQuerier()
	c := NewCache(q, "cam-front", 3)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	visible := timeline.NewRange(t0, t0.Add(time.Hour))

	c.RequestRange(ctx, visible, 8)
	reqPlain := q.awaitStart(t)
	require.Nil(t, reqPlain.Filter)

	// Motion filtering toggles on while the unfiltered fetch is on the
	// wire. The caller re-requests the same view with the new criteria.
	c.SetFilter(&Filter{MinScore: 0.5})
	c.RequestRange(ctx, visible, 8)

	q.finish(fullBitmap(reqPlain), nil)

	reqFiltered := q.awaitStart(t)
	require.NotNil(t, reqFiltered.Filter)
	assert.Equal(t, 0.5, reqFiltered.Filter.MinScore)
	q.finish(Bitmap(make([]uint8, CellCount(timeline.NewRange(reqFiltered.Start, reqFiltered.End), reqFiltered.Unit))), nil)

	snap := waitIdle(t, c)
	assert.True(t, snap.Buffered.IsValid(), "the filtered fetch must land")
	assert.Equal(t, 2, q.callCount())
}

func TestSetFilterSameCriteriaKeepsBuffer(t *testing.T) {
	q := &recordingQuerier{fill: 1}
	c := NewCache(q, "cam-front", 3)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	visible := timeline.NewRange(t0, t0.Add(time.Hour))
	c.RequestRange(ctx, visible, 8)
	waitIdle(t, c)
	require.Equal(t, 1, q.callCount())

	c.SetFilter(nil)
	c.RequestRange(ctx, visible, 8)
	assert.Equal(t, 1, q.callCount(), "re-setting the absent filter must not invalidate")

	regionA := imageRect(0, 0, 320, 240)
	c.SetFilter(&Filter{MinScore: 0.3, Region: regionA})
	c.RequestRange(ctx, visible, 8)
	waitIdle(t, c)
	require.Equal(t, 2, q.callCount())

	// Equivalent criteria behind a fresh pointer: still no invalidation.
	regionB := imageRect(0, 0, 320, 240)
	c.SetFilter(&Filter{MinScore: 0.3, Region: regionB})
	c.RequestRange(ctx, visible, 8)
	assert.Equal(t, 2, q.callCount())
}

func TestInvalidRangeIgnored(t *testing.T) {
	q := &recordingQuerier{fill: 1}
	c := NewCache(q, "cam-front", 3)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	c.RequestRange(ctx, timeline.TimeRange{}, 8)
	c.RequestRange(ctx, timeline.NewRange(t0, t0), 8)
	c.RequestRange(ctx, timeline.NewRange(t0, t0.Add(-time.Hour)), 8)

	assert.Equal(t, 0, q.callCount())
	assert.False(t, c.Snapshot().Loading)
}

func TestShortPayloadPaddedToCellCount(t *testing.T) {
	q := &recordingQuerier{bitmap: Bitmap{1, 1, 1}}
	c := NewCache(q, "cam-front", 1)
	ctx := context.Background()

	// One minute visible with one buffer screen per side: 180 one-second
	// cells expected.
	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	c.RequestRange(ctx, timeline.NewRange(t0, t0.Add(time.Minute)), 0)

	snap := waitIdle(t, c)
	require.Equal(t, 180, len(snap.Cells))
	assert.True(t, snap.Cells.At(0))
	assert.True(t, snap.Cells.At(2))
	assert.False(t, snap.Cells.At(3), "padding must read as gaps")
}

func TestLongPayloadTrimmedToCellCount(t *testing.T) {
	long := make(Bitmap, 500)
	for i := range long {
		long[i] = 1
	}
	q := &recordingQuerier{bitmap: long}
	c := NewCache(q, "cam-front", 1)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	c.RequestRange(ctx, timeline.NewRange(t0, t0.Add(time.Minute)), 0)

	snap := waitIdle(t, c)
	assert.Equal(t, 180, len(snap.Cells))
}
