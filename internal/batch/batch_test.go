package batch

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abelbrown/docfeed/internal/catalog"
)

type call struct {
	op  string
	id  catalog.DocID
	tag catalog.TagID
	ocr bool
}

// mockMutator records calls and fails the IDs listed in fail.
type mockMutator struct {
	mu       sync.Mutex
	calls    []call
	fail     map[catalog.DocID]error
	delay    time.Duration
	inflight atomic.Int32
	peak     atomic.Int32
}

func (m *mockMutator) record(c call) error {
	n := m.inflight.Add(1)
	defer m.inflight.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
	return m.fail[c.id]
}

func (m *mockMutator) DeleteDocument(ctx context.Context, id catalog.DocID) error {
	return m.record(call{op: "delete", id: id})
}

func (m *mockMutator) ReprocessDocument(ctx context.Context, id catalog.DocID, forceOCR bool) error {
	return m.record(call{op: "reprocess", id: id, ocr: forceOCR})
}

func (m *mockMutator) AddTag(ctx context.Context, id catalog.DocID, tag catalog.TagID) error {
	return m.record(call{op: "add", id: id, tag: tag})
}

func (m *mockMutator) RemoveTag(ctx context.Context, id catalog.DocID, tag catalog.TagID) error {
	return m.record(call{op: "remove", id: id, tag: tag})
}

func TestApplyPartialFailure(t *testing.T) {
	transport := &catalog.TransportError{Op: "add tag", StatusCode: 500, Err: errors.New("boom")}
	m := &mockMutator{fail: map[catalog.DocID]error{2: transport}}
	d := NewDispatcher(m, 2)

	report := d.Apply(context.Background(), Mutation{Kind: AddTag, Tag: 5}, []catalog.DocID{1, 2})

	if len(m.calls) != 2 {
		t.Fatalf("expected 2 independent calls, got %d", len(m.calls))
	}
	for _, c := range m.calls {
		if c.op != "add" || c.tag != 5 {
			t.Errorf("unexpected call %+v", c)
		}
	}
	if got := report.Succeeded(); !reflect.DeepEqual(got, []catalog.DocID{1}) {
		t.Errorf("Succeeded() = %v", got)
	}
	if got := report.Failed(); !reflect.DeepEqual(got, []catalog.DocID{2}) {
		t.Errorf("Failed() = %v", got)
	}

	err := report.Err()
	var pf *PartialFailure
	if !errors.As(err, &pf) {
		t.Fatalf("expected *PartialFailure, got %v", err)
	}
	if pf.Total != 2 || len(pf.IDs) != 1 {
		t.Errorf("unexpected partial failure %+v", pf)
	}
	if !catalog.IsTransport(err) {
		t.Error("partial failure should unwrap to the transport error")
	}
	for _, c := range m.calls {
		if c.op == "remove" {
			t.Error("successful mutation must not be rolled back")
		}
	}
}

func TestApplyAllSucceed(t *testing.T) {
	m := &mockMutator{}
	report := NewDispatcher(m, 0).Apply(context.Background(), Mutation{Kind: Delete}, []catalog.DocID{3, 1, 2})

	if report.Err() != nil {
		t.Errorf("unexpected error %v", report.Err())
	}
	want := []catalog.DocID{3, 1, 2}
	for i, o := range report.Outcomes {
		if o.ID != want[i] {
			t.Errorf("outcomes not in input order: %v", report.Outcomes)
		}
	}
}

func TestApplyDispatchesByKind(t *testing.T) {
	tests := []struct {
		m    Mutation
		want call
	}{
		{Mutation{Kind: Delete}, call{op: "delete", id: 7}},
		{Mutation{Kind: Reprocess}, call{op: "reprocess", id: 7}},
		{Mutation{Kind: Reprocess, ForceOCR: true}, call{op: "reprocess", id: 7, ocr: true}},
		{Mutation{Kind: AddTag, Tag: 4}, call{op: "add", id: 7, tag: 4}},
		{Mutation{Kind: RemoveTag, Tag: 4}, call{op: "remove", id: 7, tag: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.m.Kind.String(), func(t *testing.T) {
			m := &mockMutator{}
			NewDispatcher(m, 1).Apply(context.Background(), tt.m, []catalog.DocID{7})
			if len(m.calls) != 1 || m.calls[0] != tt.want {
				t.Errorf("calls = %+v, want %+v", m.calls, tt.want)
			}
		})
	}
}

func TestApplyInvalidMutation(t *testing.T) {
	m := &mockMutator{}
	report := NewDispatcher(m, 1).Apply(context.Background(), Mutation{Kind: AddTag}, []catalog.DocID{1, 2})

	if len(m.calls) != 0 {
		t.Error("invalid mutation must not reach the server")
	}
	if !errors.Is(report.Err(), ErrNoTag) {
		t.Errorf("expected ErrNoTag, got %v", report.Err())
	}
}

func TestApplyRespectsConcurrencyLimit(t *testing.T) {
	m := &mockMutator{delay: 10 * time.Millisecond}
	ids := make([]catalog.DocID, 12)
	for i := range ids {
		ids[i] = catalog.DocID(i + 1)
	}

	NewDispatcher(m, 3).Apply(context.Background(), Mutation{Kind: Delete}, ids)

	if got := m.peak.Load(); got > 3 {
		t.Errorf("peak concurrency %d exceeds limit 3", got)
	}
	if len(m.calls) != len(ids) {
		t.Errorf("expected %d calls, got %d", len(ids), len(m.calls))
	}
}

func TestApplyCancelledContext(t *testing.T) {
	m := &mockMutator{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := NewDispatcher(m, 2).Apply(ctx, Mutation{Kind: Delete}, []catalog.DocID{1, 2})
	if len(report.Failed()) != 2 {
		t.Errorf("expected both outcomes to fail, got %+v", report.Outcomes)
	}
	if !catalog.IsTransport(report.Err()) {
		t.Errorf("cancellation should be a transport failure, got %v", report.Err())
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{Delete, Reprocess, AddTag, RemoveTag} {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseKind("rename"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
