package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/docfeed/internal/batch"
	"github.com/abelbrown/docfeed/internal/catalog"
	"github.com/abelbrown/docfeed/internal/feed"
	"github.com/abelbrown/docfeed/internal/logging"
)

// Commands are the side-effecting operations the App triggers. Each
// returns a tea.Cmd whose message comes back through Update. Any of them
// may be nil.
type Commands struct {
	FetchPage  func(f feed.Fetch) tea.Cmd
	ApplyBatch func(m batch.Mutation, ids []catalog.DocID) tea.Cmd
	LoadTags   func() tea.Cmd
	// KickJobs asks the job poller for an immediate poll.
	KickJobs func()
}

// FetchPageCmd returns a FetchPage implementation backed by fetcher.
func FetchPageCmd(ctx context.Context, fetcher feed.PageFetcher) func(feed.Fetch) tea.Cmd {
	return func(f feed.Fetch) tea.Cmd {
		return func() tea.Msg {
			page, err := f.Run(ctx, fetcher)
			return PageLoaded{Fetch: f, Page: page, Err: err}
		}
	}
}

// ApplyBatchCmd returns an ApplyBatch implementation backed by d.
func ApplyBatchCmd(ctx context.Context, d *batch.Dispatcher) func(batch.Mutation, []catalog.DocID) tea.Cmd {
	return func(m batch.Mutation, ids []catalog.DocID) tea.Cmd {
		return func() tea.Msg {
			return BatchDone{Report: d.Apply(ctx, m, ids)}
		}
	}
}

// TagLister is the tag call LoadTagsCmd needs.
type TagLister interface {
	ListTags(ctx context.Context) ([]catalog.Tag, error)
}

// TagSnapshot persists the last tag list seen so the feed can still
// resolve names when the server is unreachable.
type TagSnapshot interface {
	SaveTags(tags []catalog.Tag) error
	LoadTags() ([]catalog.Tag, bool, error)
}

// LoadTagsCmd fetches tags, refreshing snap on success and falling back to
// it on failure. snap may be nil.
func LoadTagsCmd(ctx context.Context, lister TagLister, snap TagSnapshot, timeout time.Duration) func() tea.Cmd {
	return func() tea.Cmd {
		return func() tea.Msg {
			tctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			list, err := lister.ListTags(tctx)
			if err == nil {
				if snap != nil {
					if saveErr := snap.SaveTags(list); saveErr != nil {
						logging.Warn("could not save tag snapshot", "error", saveErr)
					}
				}
				return TagsLoaded{Tags: list}
			}
			if snap != nil {
				if cached, ok, snapErr := snap.LoadTags(); snapErr == nil && ok {
					return TagsLoaded{Tags: cached, Cached: true, Err: err}
				}
			}
			return TagsLoaded{Err: err}
		}
	}
}
