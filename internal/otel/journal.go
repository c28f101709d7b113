package otel

// The drain goroutine is the only reader of j.ch and the only writer to j.w.
// j.mu guards the ring pointer only; the Ring has its own lock.

import (
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/abelbrown/docfeed/internal/logging"
)

// queueSize is the capacity of the async write channel.
const queueSize = 1024

type entry struct {
	data []byte
	ev   Event
}

// Journal serializes events as JSONL via a background writer. A nil
// *Journal accepts and discards every call.
type Journal struct {
	mu        sync.Mutex
	ring      *Ring
	session   string
	ch        chan entry
	w         io.Writer
	dropped   atomic.Uint64
	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewJournal starts a journal writing to w. Call Close to flush.
func NewJournal(w io.Writer) *Journal {
	j := &Journal{
		session: uuid.NewString(),
		ch:      make(chan entry, queueSize),
		w:       w,
		done:    make(chan struct{}),
	}
	go j.drain()
	return j
}

func (j *Journal) drain() {
	defer close(j.done)
	for e := range j.ch {
		if _, err := j.w.Write(e.data); err != nil {
			j.dropped.Add(1)
		}

		j.mu.Lock()
		r := j.ring
		j.mu.Unlock()

		if r != nil {
			r.Push(e.ev)
		}
	}
}

// Emit queues e. It never blocks: when the queue is full or the journal
// is closed the event is counted as dropped.
func (j *Journal) Emit(e Event) {
	if j == nil {
		return
	}
	defer func() {
		if recover() != nil {
			j.dropped.Add(1)
		}
	}()

	if j.closed.Load() {
		j.dropped.Add(1)
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.Session = j.session

	data, err := json.Marshal(e)
	if err != nil {
		j.dropped.Add(1)
		return
	}
	data = append(data, '\n')

	select {
	case j.ch <- entry{data: data, ev: e}:
	default:
		j.dropped.Add(1)
	}
}

// Info emits an info-level event.
func (j *Journal) Info(kind EventKind, msg string) {
	j.Emit(Event{Level: LevelInfo, Kind: kind, Msg: msg})
}

// Warn emits a warn-level event carrying err.
func (j *Journal) Warn(kind EventKind, err error) {
	j.Emit(Event{Level: LevelWarn, Kind: kind, Err: ErrString(err)})
}

// AttachRing mirrors every written event into r.
func (j *Journal) AttachRing(r *Ring) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ring = r
}

// Session returns the journal's session ID.
func (j *Journal) Session() string {
	if j == nil {
		return ""
	}
	return j.session
}

// Dropped returns the number of events dropped so far.
func (j *Journal) Dropped() uint64 {
	if j == nil {
		return 0
	}
	return j.dropped.Load()
}

// Close flushes pending events and stops the writer. Safe to call more
// than once and concurrently with Emit.
func (j *Journal) Close() {
	if j == nil {
		return
	}
	j.closeOnce.Do(func() {
		j.closed.Store(true)
		close(j.ch)
		<-j.done

		if d := j.dropped.Load(); d > 0 {
			logging.Warn("otel: events dropped", "count", d, "session", j.session)
		}
	})
}
