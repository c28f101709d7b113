package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abelbrown/docfeed/internal/catalog"
)

func TestTrackerTransitions(t *testing.T) {
	var tr Tracker

	steps := []struct {
		name    string
		status  catalog.JobStatus
		visible bool
		busy    bool
		text    string
	}{
		{"idle at start shows nothing", catalog.JobStatus{}, false, false, ""},
		{"busy", catalog.JobStatus{Busy: true, Current: "Importing a.pdf", Progress: 30, Queue: 2}, true, true, "Processing 3 documents. Importing a.pdf"},
		{"still busy", catalog.JobStatus{Busy: true, Current: "Importing b.pdf", Queue: 0}, true, true, "Processing 1 documents. Importing b.pdf"},
		{"finished", catalog.JobStatus{}, true, false, FinishedText},
		{"idle keeps finished notice", catalog.JobStatus{}, true, false, FinishedText},
	}

	for _, s := range steps {
		n := tr.Observe(s.status)
		if n.Visible != s.visible || n.Busy != s.busy || n.Text != s.text {
			t.Errorf("%s: got %+v", s.name, n)
		}
	}

	tr.Dismiss()
	if tr.Last().Visible {
		t.Error("Dismiss should hide the finished notice")
	}
}

func TestTrackerDismissKeepsBusy(t *testing.T) {
	var tr Tracker
	tr.Observe(catalog.JobStatus{Busy: true, Current: "x"})
	tr.Dismiss()
	if !tr.Last().Busy {
		t.Error("a busy notice stays until the job finishes")
	}
}

type mockSource struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (m *mockSource) JobStatus(ctx context.Context) (catalog.JobStatus, error) {
	m.calls.Add(1)
	if m.fail.Load() {
		return catalog.JobStatus{}, &catalog.TransportError{Op: "job status", Err: errors.New("down")}
	}
	return catalog.JobStatus{Busy: true, Queue: 1}, nil
}

func TestPollerPollsImmediatelyAndOnInterval(t *testing.T) {
	src := &mockSource{}
	p := NewPoller(src, 20*time.Millisecond)

	var mu sync.Mutex
	var got []catalog.JobStatus
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx, func(s catalog.JobStatus) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})

	time.Sleep(75 * time.Millisecond)
	cancel()
	p.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(got) < 2 {
		t.Errorf("expected at least 2 polls, got %d", len(got))
	}
	if !got[0].Busy {
		t.Errorf("unexpected status %+v", got[0])
	}
}

func TestPollerSkipsFailuresSilently(t *testing.T) {
	src := &mockSource{}
	src.fail.Store(true)
	p := NewPoller(src, 10*time.Millisecond)

	var delivered atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx, func(catalog.JobStatus) { delivered.Add(1) })

	time.Sleep(45 * time.Millisecond)
	cancel()
	p.Wait()

	if delivered.Load() != 0 {
		t.Errorf("failed polls must not be delivered, got %d", delivered.Load())
	}
	if src.calls.Load() < 2 {
		t.Errorf("poller should keep retrying, got %d calls", src.calls.Load())
	}
}

func TestPollerKick(t *testing.T) {
	src := &mockSource{}
	p := NewPoller(src, time.Hour)

	polled := make(chan struct{}, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		p.Wait()
	}()
	p.Start(ctx, func(catalog.JobStatus) { polled <- struct{}{} })

	<-polled // initial poll
	p.Kick()
	p.Kick() // collapses into the pending kick

	select {
	case <-polled:
	case <-time.After(time.Second):
		t.Fatal("Kick did not trigger a poll")
	}
	if n := src.calls.Load(); n < 2 || n > 3 {
		t.Errorf("expected 2 or 3 calls, got %d", n)
	}
}

func TestPollerStopsOnCancel(t *testing.T) {
	src := &mockSource{}
	p := NewPoller(src, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx, nil)
	cancel()

	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after cancel")
	}
}
