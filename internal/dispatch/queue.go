package dispatch

import (
	"sync"

	"github.com/PrismoFinance/bounties/internal/engine"
)

// requestQueue is a thread-safe FIFO queue of inbound requests.
//
// The queue is unbounded so the keeper never blocks on a slow tick.
// Producers (the keeper, the serve command) enqueue from any goroutine
// while the Dispatcher's Run loop dequeues.
//
// The signal channel enables context-aware waiting in the Run loop.
type requestQueue struct {
	mu       sync.Mutex
	requests []engine.Request
	closed   bool
	signal   chan struct{} // buffered, size 1
}

func newRequestQueue() *requestQueue {
	return &requestQueue{
		requests: make([]engine.Request, 0, 64),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds a request to the back of the queue.
// Returns false if the queue is closed.
func (q *requestQueue) Enqueue(req engine.Request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.requests = append(q.requests, req)

	// Non-blocking: the buffer of 1 coalesces signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front request without blocking.
// Returns (nil, false) if the queue is empty.
func (q *requestQueue) TryDequeue() (engine.Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.requests) == 0 {
		return nil, false
	}

	req := q.requests[0]

	// Release the slot so the backing array does not pin the request
	q.requests[0] = nil

	if len(q.requests) == 1 {
		q.requests = q.requests[:0]
	} else {
		q.requests = q.requests[1:]
	}

	return req, true
}

// Wait returns a channel that signals when requests may be available.
// The channel is closed when the queue is closed.
func (q *requestQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *requestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}

// Close stops further enqueues and wakes any waiter.
func (q *requestQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
