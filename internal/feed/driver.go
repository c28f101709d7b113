package feed

import "github.com/google/uuid"

// Ticket is the single-slot request token for one page fetch.
// Gen changes on every restart, so a ticket issued before a restart can
// never settle a later fetch.
type Ticket struct {
	Gen  uint64
	Page int
	ID   string // correlation ID for logs
}

// Driver enforces that at most one page fetch is outstanding. Triggers that
// arrive while a fetch is in flight, or after the feed is exhausted, are
// dropped rather than queued. Not safe for concurrent use; owned by the
// event loop.
type Driver struct {
	gen       uint64
	cursor    int
	inflight  *Ticket
	exhausted bool
}

// Restart discards cursor and exhaustion and always issues a page-0 ticket,
// abandoning any fetch still in flight.
func (d *Driver) Restart() Ticket {
	d.gen++
	d.cursor = 0
	d.exhausted = false
	d.inflight = nil
	return d.issue()
}

// Trigger issues a ticket for the next page, or reports false when a fetch
// is already outstanding or the feed has ended.
func (d *Driver) Trigger() (Ticket, bool) {
	if d.inflight != nil || d.exhausted || d.gen == 0 {
		return Ticket{}, false
	}
	return d.issue(), true
}

func (d *Driver) issue() Ticket {
	t := Ticket{Gen: d.gen, Page: d.cursor, ID: uuid.NewString()}
	d.inflight = &t
	return t
}

// Settle closes the outstanding fetch. It returns false, changing nothing,
// when t is stale. On failure the cursor stays and the slot re-arms so the
// next trigger retries the same page. On success the cursor advances by one;
// a short page (hasMore false) ends the feed until the next restart.
func (d *Driver) Settle(t Ticket, ok bool, hasMore bool) bool {
	if d.inflight == nil || *d.inflight != t {
		return false
	}
	d.inflight = nil
	if !ok {
		return true
	}
	d.cursor++
	if !hasMore {
		d.exhausted = true
	}
	return true
}

// Cursor returns the index of the next page to fetch.
func (d *Driver) Cursor() int { return d.cursor }

// InFlight reports whether a fetch is outstanding.
func (d *Driver) InFlight() bool { return d.inflight != nil }

// Exhausted reports whether a short page has been seen this session.
func (d *Driver) Exhausted() bool { return d.exhausted }

// Generation returns the current restart generation.
func (d *Driver) Generation() uint64 { return d.gen }
