package feed

import (
	"strconv"
	"time"

	"github.com/abelbrown/docfeed/internal/catalog"
)

// UnknownYear labels documents whose grouping timestamp is missing.
const UnknownYear = "Unknown"

// noYear is the initial sentinel. No timestamp maps to an empty label, so
// the first document always opens a group.
const noYear = ""

// Item is one rendered row: a year separator or a document.
type Item struct {
	Separator bool
	Label     string // year label, set for separators
	Doc       catalog.Document
}

// Assembler turns fetched pages into render items, inserting a year
// separator whenever the year changes in fetch order. It never reorders:
// grouping is only correct if the server honours the requested sort.
type Assembler struct {
	loc      *time.Location
	lastYear string
	hasNext  bool
	pages    int
}

// NewAssembler creates an assembler that computes years in loc
// (time.Local when nil).
func NewAssembler(loc *time.Location) *Assembler {
	if loc == nil {
		loc = time.Local
	}
	return &Assembler{loc: loc, lastYear: noYear, hasNext: true}
}

// YearLabel returns the group label for a timestamp in seconds.
func (a *Assembler) YearLabel(seconds int64) string {
	if seconds <= 0 {
		return UnknownYear
	}
	return strconv.Itoa(time.Unix(seconds, 0).In(a.loc).Year())
}

// Assemble converts one page into items. cursor is the page index the
// records were fetched for; pages must be fed in cursor order.
func (a *Assembler) Assemble(cursor int, order Order, page Page) []Item {
	items := make([]Item, 0, len(page.Docs)+1)
	for _, doc := range page.Docs {
		year := a.YearLabel(order.Timestamp(doc))
		if year != a.lastYear {
			items = append(items, Item{Separator: true, Label: year})
			a.lastYear = year
		}
		items = append(items, Item{Doc: doc})
	}
	a.hasNext = page.HasMore
	a.pages = cursor + 1
	return items
}

// HasNext reports whether the last assembled page was full.
func (a *Assembler) HasNext() bool {
	return a.hasNext
}

// Pages returns how many pages have been assembled.
func (a *Assembler) Pages() int {
	return a.pages
}
