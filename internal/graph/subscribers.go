package graph

import "sync"

// Token identifies one entry of a SubscriberList. Tokens are handed out in
// increasing order and never reused, so a stale token can never match an
// entry added later in the same list position.
type Token uint64

// Subscriber is one entry of a subscriber list.
type Subscriber struct {
	Token Token
	Fn    func(v any)
}

// SubscriberList is the ordered list of watcher callbacks attached to a node.
//
// Thread-safe: all methods may be called from any goroutine, including from
// inside a callback obtained through Snapshot.
type SubscriberList struct {
	mu      sync.Mutex
	entries []Subscriber
	next    Token
	closed  bool
}

// NewSubscriberList creates an empty, open list.
func NewSubscriberList() *SubscriberList {
	return &SubscriberList{}
}

// Add appends fn and returns the token identifying the new entry.
// Returns ErrClosed if the owning node has been removed.
func (l *SubscriberList) Add(fn func(v any)) (Token, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, ErrClosed
	}

	l.next++
	l.entries = append(l.entries, Subscriber{Token: l.next, Fn: fn})
	return l.next, nil
}

// IndexOf returns the current position of the entry with token t, or -1.
func (l *SubscriberList) IndexOf(t Token) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.indexOf(t)
}

func (l *SubscriberList) indexOf(t Token) int {
	for i, e := range l.entries {
		if e.Token == t {
			return i
		}
	}
	return -1
}

// Remove deletes the entry with token t. Returns false if no such entry
// exists (already removed, or the list was closed).
func (l *SubscriberList) Remove(t Token) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(t)
	if i == -1 {
		return false
	}

	copy(l.entries[i:], l.entries[i+1:])
	l.entries[len(l.entries)-1] = Subscriber{}
	l.entries = l.entries[:len(l.entries)-1]
	return true
}

// Snapshot returns a point-in-time copy of the entries. Delivery iterates the
// copy, so removals during delivery only affect later snapshots.
func (l *SubscriberList) Snapshot() []Subscriber {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) == 0 {
		return nil
	}
	out := make([]Subscriber, len(l.entries))
	copy(out, l.entries)
	return out
}

// Contains reports whether t is still subscribed.
func (l *SubscriberList) Contains(t Token) bool {
	return l.IndexOf(t) != -1
}

// Len returns the number of live entries.
func (l *SubscriberList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Close drops every entry and rejects further Adds. Returns the number of
// entries dropped. Closing twice is a no-op.
func (l *SubscriberList) Close() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0
	}
	n := len(l.entries)
	l.entries = nil
	l.closed = true
	return n
}

// Closed reports whether the list has been closed.
func (l *SubscriberList) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
