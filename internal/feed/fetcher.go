package feed

import (
	"context"
	"net/url"

	"github.com/abelbrown/docfeed/internal/catalog"
)

// DocumentLister is the catalog call the fetcher needs. *catalog.Client
// implements it.
type DocumentLister interface {
	ListDocuments(ctx context.Context, params url.Values) ([]catalog.Document, error)
}

// PageFetcher performs one paginated fetch.
type PageFetcher interface {
	FetchPage(ctx context.Context, req Request) (Page, error)
}

// Page is one successful fetch.
type Page struct {
	Docs []catalog.Document
	// HasMore is true when the page was full. A full page only means
	// "maybe more"; the next one may come back empty.
	HasMore bool
}

// Fetcher classifies list-documents responses into pages and errors.
type Fetcher struct {
	lister DocumentLister
}

// NewFetcher creates a Fetcher backed by lister.
func NewFetcher(lister DocumentLister) *Fetcher {
	return &Fetcher{lister: lister}
}

// FetchPage runs req. Any failure comes back as a *catalog.TransportError
// or *catalog.DecodeError; errors of other types are wrapped as transport
// failures.
func (f *Fetcher) FetchPage(ctx context.Context, req Request) (Page, error) {
	docs, err := f.lister.ListDocuments(ctx, req.Values())
	if err != nil {
		if !catalog.IsTransport(err) && !catalog.IsDecode(err) {
			err = &catalog.TransportError{Op: "list documents", Err: err}
		}
		return Page{}, err
	}
	return Page{Docs: docs, HasMore: len(docs) >= PageSize}, nil
}
