// Package otel keeps a structured journal of feed, batch and job events.
//
// Events are typed structs serialized as JSONL lines. The Journal writes
// them asynchronously through a buffered channel drained by one goroutine,
// and can mirror them into a Ring for the in-app debug overlay.
package otel

import (
	"encoding/json"
	"time"
)

// Level defines event severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind identifies the category of an event.
// Dot-delimited: "<subsystem>.<action>".
type EventKind string

const (
	// Feed events
	KindFeedRestart EventKind = "feed.restart"
	KindPageFetch   EventKind = "feed.fetch"
	KindPageApplied EventKind = "feed.page"
	KindPageError   EventKind = "feed.error"
	KindPageStale   EventKind = "feed.stale"
	KindFeedEnd     EventKind = "feed.end"

	// Filter events
	KindFilterChange EventKind = "filter.change"
	KindFilterError  EventKind = "filter.persist_error"

	// Batch events
	KindBatchStart EventKind = "batch.start"
	KindBatchDone  EventKind = "batch.done"

	// Job poller events
	KindJobBusy     EventKind = "jobs.busy"
	KindJobFinished EventKind = "jobs.finished"

	// System events
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
)

// Event is one journal record. Every field except Kind and Time is
// optional.
type Event struct {
	Time    time.Time     `json:"t"`
	Level   Level         `json:"level,omitempty"`
	Kind    EventKind     `json:"kind"`
	Session string        `json:"session,omitempty"` // journal session, same for the whole run
	Ticket  string        `json:"ticket,omitempty"`  // page fetch correlation ID
	Gen     uint64        `json:"gen,omitempty"`
	Page    int           `json:"page,omitempty"`
	Count   int           `json:"count,omitempty"`
	Failed  int           `json:"failed,omitempty"`
	Dur     time.Duration `json:"-"`
	DurMs   float64       `json:"dur_ms,omitempty"` // computed from Dur at marshal time
	Err     string        `json:"err,omitempty"`
	Msg     string        `json:"msg,omitempty"`
}

// MarshalJSON converts Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	a := alias(e)
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}

// ErrString returns err's message, or "" for nil.
func ErrString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
