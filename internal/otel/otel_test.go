package otel

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer is a bytes.Buffer safe for the drain goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := strings.TrimSpace(b.buf.String())
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestEmitWritesJSONL(t *testing.T) {
	var buf syncBuffer
	j := NewJournal(&buf)

	j.Emit(Event{Kind: KindPageApplied, Level: LevelInfo, Gen: 2, Page: 1, Count: 10, Dur: 1500 * time.Millisecond})
	j.Warn(KindPageError, errors.New("connection refused"))
	j.Close()

	lines := buf.Lines()
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if first["kind"] != "feed.page" || first["page"] != float64(1) || first["dur_ms"] != float64(1500) {
		t.Errorf("unexpected first event %v", first)
	}
	if first["session"] != j.Session() || j.Session() == "" {
		t.Errorf("session not stamped: %v", first["session"])
	}

	var second Event
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if second.Err != "connection refused" || second.Level != LevelWarn {
		t.Errorf("unexpected second event %+v", second)
	}
}

func TestOmitEmptyFields(t *testing.T) {
	var buf syncBuffer
	j := NewJournal(&buf)
	j.Emit(Event{Kind: KindStartup})
	j.Close()

	line := buf.Lines()[0]
	for _, field := range []string{"dur_ms", "count", "failed", "ticket", "gen", "page", "err", "msg"} {
		if strings.Contains(line, `"`+field+`"`) {
			t.Errorf("field %q should be omitted: %s", field, line)
		}
	}
}

func TestConcurrentEmit(t *testing.T) {
	var buf syncBuffer
	j := NewJournal(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.Info(KindBatchDone, "ok")
		}()
	}
	wg.Wait()
	j.Close()

	if got := len(buf.Lines()); got != 50 {
		t.Errorf("expected 50 lines, got %d", got)
	}
}

func TestEmitAfterCloseIsDropped(t *testing.T) {
	var buf syncBuffer
	j := NewJournal(&buf)
	j.Close()
	j.Close()

	j.Info(KindShutdown, "late")
	if j.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", j.Dropped())
	}
}

func TestNilJournal(t *testing.T) {
	var j *Journal
	j.Emit(Event{Kind: KindStartup})
	j.AttachRing(NewRing(4))
	j.Close()
	if j.Dropped() != 0 || j.Session() != "" {
		t.Error("nil journal should be inert")
	}
}

func TestJournalMirrorsIntoRing(t *testing.T) {
	var buf syncBuffer
	j := NewJournal(&buf)
	r := NewRing(8)
	j.AttachRing(r)

	j.Info(KindFeedRestart, "")
	j.Info(KindPageFetch, "")
	j.Close()

	last := r.Last(2)
	if len(last) != 2 || last[0].Kind != KindFeedRestart || last[1].Kind != KindPageFetch {
		t.Errorf("ring contents = %+v", last)
	}
}

func TestRingWrapAround(t *testing.T) {
	r := NewRing(4)
	for i := 0; i < 6; i++ {
		r.Push(Event{Kind: KindPageApplied, Page: i})
	}

	if r.Len() != 4 || r.Cap() != 4 {
		t.Fatalf("Len=%d Cap=%d", r.Len(), r.Cap())
	}
	last := r.Last(10)
	for i, e := range last {
		if e.Page != i+2 {
			t.Errorf("last[%d].Page = %d, want %d", i, e.Page, i+2)
		}
	}
	if got := r.Last(2); got[0].Page != 4 || got[1].Page != 5 {
		t.Errorf("Last(2) = %+v", got)
	}
}

func TestRingCountsAndEdges(t *testing.T) {
	r := NewRing(0)
	if r.Cap() != DefaultRingSize {
		t.Errorf("Cap() = %d, want %d", r.Cap(), DefaultRingSize)
	}
	if r.Last(3) != nil || r.Last(-1) != nil {
		t.Error("empty ring should return nil")
	}

	r.Push(Event{Kind: KindPageError})
	r.Push(Event{Kind: KindPageError})
	r.Push(Event{Kind: KindPageStale})

	counts := r.Counts()
	if counts[KindPageError] != 2 || counts[KindPageStale] != 1 {
		t.Errorf("Counts() = %v", counts)
	}
}
