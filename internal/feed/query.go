package feed

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/abelbrown/docfeed/internal/catalog"
)

// PageSize is the fixed number of documents requested per page.
const PageSize = 10

// Order is the sort mode requested from the server. It also picks the
// timestamp used for year grouping.
type Order int

const (
	// OrderUnspecified omits the order parameter; grouping uses the import date.
	OrderUnspecified Order = iota
	// OrderImported sorts by import date (order=0).
	OrderImported
	// OrderExtracted sorts by the extracted document date (order=1).
	OrderExtracted
)

// ParseOrder accepts the wire values "0"/"1" and the names used on the
// command line.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "default":
		return OrderUnspecified, nil
	case "0", "imported", "import":
		return OrderImported, nil
	case "1", "extracted", "document", "doc":
		return OrderExtracted, nil
	}
	return OrderUnspecified, fmt.Errorf("unknown order %q (want imported or extracted)", s)
}

func (o Order) String() string {
	switch o {
	case OrderImported:
		return "imported"
	case OrderExtracted:
		return "extracted"
	default:
		return "default"
	}
}

// param returns the wire value, or false when the parameter is omitted.
func (o Order) param() (string, bool) {
	switch o {
	case OrderImported:
		return "0", true
	case OrderExtracted:
		return "1", true
	}
	return "", false
}

// Toggle flips between imported and extracted order.
func (o Order) Toggle() Order {
	if o == OrderExtracted {
		return OrderImported
	}
	return OrderExtracted
}

// Timestamp returns the seconds value that order groups doc by.
// Zero means unknown.
func (o Order) Timestamp(doc catalog.Document) int64 {
	if o == OrderExtracted {
		return doc.Extracted.DocDate
	}
	return doc.ImportedDate
}

// Request describes one list-documents call.
type Request struct {
	Page   int
	Offset int
	Count  int
	Order  Order
	Query  string
	Tags   []catalog.TagID
}

// BuildQuery turns the cursor, sort order, free-text query and active
// filters into a request. The page size is always PageSize.
func BuildQuery(cursor int, order Order, query string, tags []catalog.TagID) Request {
	t := make([]catalog.TagID, len(tags))
	copy(t, tags)
	return Request{
		Page:   cursor,
		Offset: cursor * PageSize,
		Count:  PageSize,
		Order:  order,
		Query:  strings.TrimSpace(query),
		Tags:   t,
	}
}

// Values encodes the request as query parameters. Empty optional
// parameters are omitted rather than sent blank.
func (r Request) Values() url.Values {
	v := url.Values{}
	v.Set("count", strconv.Itoa(r.Count))
	v.Set("offset", strconv.Itoa(r.Offset))
	if p, ok := r.Order.param(); ok {
		v.Set("order", p)
	}
	if r.Query != "" {
		v.Set("query", r.Query)
	}
	if len(r.Tags) > 0 {
		v.Set("tag", JoinTags(r.Tags))
	}
	return v
}

// JoinTags renders tag IDs as a comma-joined list.
func JoinTags(tags []catalog.TagID) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = strconv.FormatUint(uint64(t), 10)
	}
	return strings.Join(parts, ",")
}
