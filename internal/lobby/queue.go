// internal/lobby/queue.go
package lobby

import (
	"context"
	"sync"
)

// RequestQueue is an unbounded FIFO of hosting requests. Submit never
// blocks; Take blocks until a request is available or ctx is done.
type RequestQueue struct {
	mu      sync.Mutex
	pending []*Request
	ready   chan struct{}
}

// NewRequestQueue creates and returns an empty request queue.
func NewRequestQueue() *RequestQueue {
	return &RequestQueue{ready: make(chan struct{})}
}

// Submit appends req and wakes every waiting taker.
func (q *RequestQueue) Submit(req *Request) {
	q.mu.Lock()
	q.pending = append(q.pending, req)
	close(q.ready)
	q.ready = make(chan struct{})
	q.mu.Unlock()
}

// Take removes and returns the oldest request.
func (q *RequestQueue) Take(ctx context.Context) (*Request, error) {
	for {
		q.mu.Lock()
		if len(q.pending) > 0 {
			req := q.pending[0]
			q.pending[0] = nil
			q.pending = q.pending[1:]
			q.mu.Unlock()
			return req, nil
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ready:
		}
	}
}

// Remove drops req if it is still waiting. Returns false once a hoster took it.
func (q *RequestQueue) Remove(req *Request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, r := range q.pending {
		if r == req {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of waiting requests.
func (q *RequestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
