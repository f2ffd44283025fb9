package render

import (
	"sort"
	"sync"
	"time"
)

// FrameToken identifies one scheduled frame callback.
type FrameToken uint64

// Scheduler hands out per-frame callbacks. The UI adapter runs them on
// its draw tick; tests drive them by hand with a fixed clock.
type Scheduler interface {
	// RequestFrame queues cb for the next frame and returns a token that
	// can cancel it.
	RequestFrame(cb func(now time.Time)) FrameToken
	// CancelFrame drops a queued callback. Unknown or already-run tokens
	// are ignored.
	CancelFrame(token FrameToken)
}

// FrameQueue is a Scheduler that collects callbacks until Run is called.
// Callbacks requested while Run executes land in the next batch, which is
// what lets the render loop re-request itself every frame without
// spinning.
type FrameQueue struct {
	mu      sync.Mutex
	next    FrameToken
	pending map[FrameToken]func(time.Time)
}

// NewFrameQueue returns an empty queue.
func NewFrameQueue() *FrameQueue {
	return &FrameQueue{pending: make(map[FrameToken]func(time.Time))}
}

// RequestFrame queues a callback for the next Run.
func (q *FrameQueue) RequestFrame(cb func(now time.Time)) FrameToken {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.next++
	q.pending[q.next] = cb
	return q.next
}

// CancelFrame removes a queued callback.
func (q *FrameQueue) CancelFrame(token FrameToken) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, token)
}

// Run executes every callback queued before this call, in request order,
// and returns how many ran.
func (q *FrameQueue) Run(now time.Time) int {
	q.mu.Lock()
	batch := q.pending
	q.pending = make(map[FrameToken]func(time.Time))
	q.mu.Unlock()

	tokens := make([]FrameToken, 0, len(batch))
	for tok := range batch {
		tokens = append(tokens, tok)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i] < tokens[j] })

	for _, tok := range tokens {
		batch[tok](now)
	}
	return len(tokens)
}

// Len reports how many callbacks are waiting.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
