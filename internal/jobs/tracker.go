// Package jobs polls the server's import/processing job and turns the
// status into the alert line shown above the feed.
package jobs

import (
	"fmt"

	"github.com/abelbrown/docfeed/internal/catalog"
)

// FinishedText is shown once a busy job has gone idle.
const FinishedText = "Finished jobs. Refresh for new content."

// Notice is what the alert line should show.
type Notice struct {
	Visible  bool
	Busy     bool
	Text     string
	Progress int
}

// Tracker remembers whether a busy status was shown so it can announce the
// transition back to idle. Purely informational; it never touches the feed.
type Tracker struct {
	sawBusy bool
	last    Notice
}

// Observe folds a polled status into the notice to display.
func (t *Tracker) Observe(s catalog.JobStatus) Notice {
	switch {
	case s.Busy:
		t.sawBusy = true
		t.last = Notice{
			Visible:  true,
			Busy:     true,
			Text:     fmt.Sprintf("Processing %d documents. %s", s.Pending(), s.Current),
			Progress: s.Progress,
		}
	case t.sawBusy:
		t.sawBusy = false
		t.last = Notice{Visible: true, Text: FinishedText}
	case t.last.Busy:
		t.last = Notice{}
	}
	return t.last
}

// Last returns the most recent notice.
func (t *Tracker) Last() Notice {
	return t.last
}

// Dismiss hides the notice, e.g. after the user refreshed the feed.
func (t *Tracker) Dismiss() {
	if !t.last.Busy {
		t.last = Notice{}
	}
}
