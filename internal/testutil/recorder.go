package testutil

import "sync"

// Recorder collects the values a watcher observes, in delivery order.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
// Effect outcomes are delivered on the goroutine that runs their pass, so a
// test reading a Recorder may race the kernel without it.
type Recorder struct {
	mu     sync.Mutex
	values []any
}

// Observe appends v. Pass it to Kernel.Subscribe.
func (r *Recorder) Observe(v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

// Values returns a copy of everything observed so far.
func (r *Recorder) Values() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]any, len(r.values))
	copy(out, r.values)
	return out
}

// Len returns the number of observed values.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

// Reset forgets every observed value.
//
// Used for test reuse across passes.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = nil
}
