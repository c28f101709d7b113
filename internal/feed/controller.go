// Package feed implements the paginated, year-grouped document feed:
// query building, page fetching, assembly and the one-in-flight scroll
// driver, tied together by Controller.
package feed

import (
	"context"
	"time"

	"github.com/abelbrown/docfeed/internal/catalog"
	"github.com/abelbrown/docfeed/internal/filters"
	"github.com/abelbrown/docfeed/internal/logging"
)

// Options configures a Controller.
type Options struct {
	Order    Order
	Query    string
	Location *time.Location // for year grouping; time.Local when nil
}

// Fetch is a page fetch the controller wants performed: the ticket that
// must come back to Resolve and the request to send.
type Fetch struct {
	Ticket  Ticket
	Request Request
}

// Run executes f against fetcher. It touches no controller state, so it can
// run off the event loop.
func (f Fetch) Run(ctx context.Context, fetcher PageFetcher) (Page, error) {
	return fetcher.FetchPage(ctx, f.Request)
}

// Result describes what Resolve did with a fetch outcome.
type Result struct {
	Applied  bool  // false for stale responses
	Appended int   // render items appended (separators included)
	Err      error // fetch error, when the fetch failed
}

// Controller owns the state of one feed session: filters, sort order,
// free-text query, cursor, grouping sentinel and the rendered items.
// Every filter, query or order change restarts the session from page 0.
// Not safe for concurrent use; drive it from a single event loop.
type Controller struct {
	filters *filters.Store
	order   Order
	query   string
	loc     *time.Location

	driver Driver
	asm    *Assembler
	items  []Item
	seen   map[catalog.DocID]bool
	// removed counts documents deleted during this session; later page
	// offsets shift back by it so no document is skipped.
	removed int
	lastErr error
}

// NewController creates a controller over the given filter store.
// Call Start to issue the first fetch.
func NewController(fs *filters.Store, opts Options) *Controller {
	c := &Controller{
		filters: fs,
		order:   opts.Order,
		query:   opts.Query,
		loc:     opts.Location,
	}
	c.reset()
	return c
}

func (c *Controller) reset() {
	c.asm = NewAssembler(c.loc)
	c.items = nil
	c.seen = make(map[catalog.DocID]bool)
	c.removed = 0
	c.lastErr = nil
}

// Start (re)starts the session and returns the page-0 fetch. Any fetch
// still in flight becomes stale.
func (c *Controller) Start() Fetch {
	c.reset()
	t := c.driver.Restart()
	logging.Debug("feed: restart", "gen", t.Gen, "order", c.order, "query", c.query, "filters", JoinTags(c.filters.Active()))
	return c.fetchFor(t)
}

// Next is the viewport-proximity trigger. It returns false when a fetch is
// already in flight or the feed has ended.
func (c *Controller) Next() (Fetch, bool) {
	t, ok := c.driver.Trigger()
	if !ok {
		return Fetch{}, false
	}
	return c.fetchFor(t), true
}

func (c *Controller) fetchFor(t Ticket) Fetch {
	req := BuildQuery(t.Page, c.order, c.query, c.filters.Active())
	req.Offset -= c.removed
	if req.Offset < 0 {
		req.Offset = 0
	}
	return Fetch{Ticket: t, Request: req}
}

// Resolve applies the outcome of f. Responses for abandoned fetches are
// dropped. A failed fetch leaves the cursor in place and re-arms the driver.
func (c *Controller) Resolve(f Fetch, page Page, err error) Result {
	if !c.driver.Settle(f.Ticket, err == nil, page.HasMore) {
		logging.Debug("feed: dropped stale page", "gen", f.Ticket.Gen, "page", f.Ticket.Page, "id", f.Ticket.ID)
		return Result{}
	}

	if err != nil {
		c.lastErr = err
		logging.Warn("feed: page fetch failed", "page", f.Ticket.Page, "id", f.Ticket.ID, "error", err)
		return Result{Applied: true, Err: err}
	}
	c.lastErr = nil

	fresh := make([]catalog.Document, 0, len(page.Docs))
	for _, doc := range page.Docs {
		if c.seen[doc.ID] {
			continue
		}
		c.seen[doc.ID] = true
		fresh = append(fresh, doc)
	}

	items := c.asm.Assemble(f.Ticket.Page, f.Request.Order, Page{Docs: fresh, HasMore: page.HasMore})
	// A tail separator emptied by deletions is replaced by the next group
	// or dropped once the feed ends.
	if n := len(c.items); n > 0 && c.items[n-1].Separator && (len(items) > 0 && items[0].Separator || len(items) == 0 && !page.HasMore) {
		c.items = c.items[:n-1]
	}
	c.items = append(c.items, items...)
	logging.Debug("feed: page applied", "page", f.Ticket.Page, "docs", len(fresh), "more", page.HasMore)
	return Result{Applied: true, Appended: len(items)}
}

// AddFilter adds a tag filter and restarts the feed if the set changed.
// restarted is false for a tag that was already active. err reports a
// persistence failure; the restart happens regardless.
func (c *Controller) AddFilter(id catalog.TagID) (f Fetch, restarted bool, err error) {
	changed, err := c.filters.Add(id)
	if !changed {
		return Fetch{}, false, err
	}
	return c.Start(), true, err
}

// RemoveFilter removes a tag filter and restarts the feed if it was active.
func (c *Controller) RemoveFilter(id catalog.TagID) (f Fetch, restarted bool, err error) {
	changed, err := c.filters.Remove(id)
	if !changed {
		return Fetch{}, false, err
	}
	return c.Start(), true, err
}

// ClearFilters drops every filter and restarts the feed if any were active.
func (c *Controller) ClearFilters() (f Fetch, restarted bool, err error) {
	changed, err := c.filters.Clear()
	if !changed {
		return Fetch{}, false, err
	}
	return c.Start(), true, err
}

// SetQuery changes the free-text query and restarts.
func (c *Controller) SetQuery(q string) Fetch {
	c.query = q
	return c.Start()
}

// SetOrder changes the sort order and restarts.
func (c *Controller) SetOrder(o Order) Fetch {
	c.order = o
	return c.Start()
}

// Items returns the rendered items. The slice must not be modified.
func (c *Controller) Items() []Item { return c.items }

// Documents returns the rendered documents in feed order.
func (c *Controller) Documents() []catalog.Document {
	docs := make([]catalog.Document, 0, len(c.items))
	for _, it := range c.items {
		if !it.Separator {
			docs = append(docs, it.Doc)
		}
	}
	return docs
}

// DocumentIDs returns the IDs of the rendered documents in feed order.
func (c *Controller) DocumentIDs() []catalog.DocID {
	ids := make([]catalog.DocID, 0, len(c.items))
	for _, it := range c.items {
		if !it.Separator {
			ids = append(ids, it.Doc.ID)
		}
	}
	return ids
}

// RemoveDocument drops a deleted document from the rendered list. A year
// separator left with no documents is dropped too, unless it heads the
// last group and more pages may still fill it.
func (c *Controller) RemoveDocument(id catalog.DocID) bool {
	for i, it := range c.items {
		if !it.Separator && it.Doc.ID == id {
			c.items = append(c.items[:i:i], c.items[i+1:]...)
			c.removed++
			c.dropEmptySeparator(i - 1)
			return true
		}
	}
	return false
}

// dropEmptySeparator removes the separator at i if no document follows it
// before the next separator.
func (c *Controller) dropEmptySeparator(i int) {
	if i < 0 || i >= len(c.items) || !c.items[i].Separator {
		return
	}
	next := i + 1
	switch {
	case next < len(c.items) && c.items[next].Separator:
	case next == len(c.items) && c.driver.Exhausted():
	default:
		return
	}
	c.items = append(c.items[:i:i], c.items[next:]...)
}

// DropFromServerView records that a still-rendered document no longer
// matches the server-side listing, so later page offsets shift back by one.
func (c *Controller) DropFromServerView(id catalog.DocID) {
	if _, ok := c.Document(id); ok {
		c.removed++
	}
}

// UpdateDocument replaces the rendered copy of doc in place.
func (c *Controller) UpdateDocument(doc catalog.Document) bool {
	for i := range c.items {
		if !c.items[i].Separator && c.items[i].Doc.ID == doc.ID {
			c.items[i].Doc = doc
			return true
		}
	}
	return false
}

// ApplyTagChange adds or removes tag on the rendered copy of id after a
// successful remote tag mutation. Removing an active filter tag takes the
// document out of the server's filtered listing; it stays rendered but
// later offsets are shifted.
func (c *Controller) ApplyTagChange(id catalog.DocID, tag catalog.TagID, added bool) bool {
	doc, ok := c.Document(id)
	if !ok {
		return false
	}
	if added {
		doc = doc.WithTag(tag)
	} else {
		if doc.HasTag(tag) && c.filters.Contains(tag) {
			c.DropFromServerView(id)
		}
		doc = doc.WithoutTag(tag)
	}
	return c.UpdateDocument(doc)
}

// Document returns the rendered copy of a document.
func (c *Controller) Document(id catalog.DocID) (catalog.Document, bool) {
	for _, it := range c.items {
		if !it.Separator && it.Doc.ID == id {
			return it.Doc, true
		}
	}
	return catalog.Document{}, false
}

// Order returns the active sort order.
func (c *Controller) Order() Order { return c.order }

// Query returns the active free-text query.
func (c *Controller) Query() string { return c.query }

// Filters returns the active tag filters.
func (c *Controller) Filters() []catalog.TagID { return c.filters.Active() }

// Loading reports whether a page fetch is outstanding.
func (c *Controller) Loading() bool { return c.driver.InFlight() }

// Exhausted reports whether the end of the feed has been reached.
func (c *Controller) Exhausted() bool { return c.driver.Exhausted() }

// HasNext reports whether more pages may exist.
func (c *Controller) HasNext() bool { return !c.driver.Exhausted() }

// Cursor returns the index of the next page to fetch.
func (c *Controller) Cursor() int { return c.driver.Cursor() }

// Generation identifies the current session; it changes on every restart.
func (c *Controller) Generation() uint64 { return c.driver.Generation() }

// Err returns the error of the last failed fetch, cleared by the next
// successful one or a restart.
func (c *Controller) Err() error { return c.lastErr }
