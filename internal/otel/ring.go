package otel

import "sync"

// DefaultRingSize is the default ring capacity.
const DefaultRingSize = 256

// Ring keeps the most recent events in memory for the debug overlay.
// Safe for concurrent use.
type Ring struct {
	mu   sync.Mutex
	buf  []Event
	next int
	full bool
}

// NewRing creates a ring holding up to size events.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Ring{buf: make([]Event, size)}
}

// Push stores e, evicting the oldest event when the ring is full.
func (r *Ring) Push(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = e
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

// ordered returns the events oldest first. Caller holds r.mu.
func (r *Ring) ordered() []Event {
	if !r.full {
		return append([]Event(nil), r.buf[:r.next]...)
	}
	out := make([]Event, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}

// Last returns up to n of the most recent events, oldest first.
func (r *Ring) Last(n int) []Event {
	if n <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.ordered()
	if n < len(all) {
		all = all[len(all)-n:]
	}
	if len(all) == 0 {
		return nil
	}
	return all
}

// Counts tallies the buffered events by kind.
func (r *Ring) Counts() map[EventKind]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[EventKind]int)
	for _, e := range r.ordered() {
		counts[e.Kind]++
	}
	return counts
}

// Len returns the number of buffered events.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}
