// Package ui provides the Bubble Tea TUI for docfeed.
package ui

import (
	"github.com/abelbrown/docfeed/internal/batch"
	"github.com/abelbrown/docfeed/internal/catalog"
	"github.com/abelbrown/docfeed/internal/feed"
)

// PageLoaded is sent when a page fetch settles. Fetch is the descriptor
// the fetch was issued for, so the controller can discard stale pages.
type PageLoaded struct {
	Fetch feed.Fetch
	Page  feed.Page
	Err   error
}

// BatchDone is sent when every call of a batch mutation has settled.
type BatchDone struct {
	Report batch.Report
}

// JobStatusMsg carries one successful job status poll.
type JobStatusMsg struct {
	Status catalog.JobStatus
}

// TagsLoaded is sent when the tag list has been fetched (or restored from
// the local snapshot when the server is unreachable).
type TagsLoaded struct {
	Tags   []catalog.Tag
	Cached bool
	Err    error
}
