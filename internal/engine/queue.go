package engine

import "sync"

// launchQueue is a thread-safe FIFO of triggers waiting for their own pass.
//
// Triggers land here when they cannot run immediately: launched from inside
// a running pass, or delivered by an effect goroutine while another caller
// holds the kernel. Whoever holds the kernel drains the queue before
// releasing it.
//
// The queue is unbounded so cascading launches never block a pass.
type launchQueue struct {
	mu       sync.Mutex
	triggers []Trigger
	closed   bool
}

// newLaunchQueue creates an empty queue.
func newLaunchQueue() *launchQueue {
	return &launchQueue{
		triggers: make([]Trigger, 0, 16),
	}
}

// Enqueue adds a trigger to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *launchQueue) Enqueue(t Trigger) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.triggers = append(q.triggers, t)
	return true
}

// TryDequeue removes and returns the front trigger without blocking.
// Returns (Trigger{}, false) if the queue is empty.
func (q *launchQueue) TryDequeue() (Trigger, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.triggers) == 0 {
		return Trigger{}, false
	}

	t := q.triggers[0]

	// Nil out the slot so the payload can be collected.
	q.triggers[0] = Trigger{}

	if len(q.triggers) == 1 {
		q.triggers = q.triggers[:0]
	} else {
		q.triggers = q.triggers[1:]
	}

	return t, true
}

// Len returns the current queue length.
func (q *launchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.triggers)
}

// Close rejects further enqueues and drops anything still queued.
// Returns the number of triggers dropped.
func (q *launchQueue) Close() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0
	}
	q.closed = true
	n := len(q.triggers)
	q.triggers = nil
	return n
}
