// Package callback hands results from worker goroutines back to the
// simulation goroutine.
package callback

import "sync"

// Queue collects functions posted from any goroutine until the simulation
// drains them.
type Queue struct {
	mu      sync.Mutex
	pending []func()
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return &Queue{}
}

// Post schedules fn for the next Drain. It is safe for concurrent use.
func (q *Queue) Post(fn func()) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
}

// Drain runs everything posted so far, in order, and returns how many ran.
// Functions posted while draining wait for the next call.
func (q *Queue) Drain() int {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

// Len returns how many functions are waiting
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
