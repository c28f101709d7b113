package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abelbrown/docfeed/internal/catalog"
	"github.com/abelbrown/docfeed/internal/otel"
)

// fakeServer is a minimal catalog server.
type fakeServer struct {
	mu       sync.Mutex
	docs     []catalog.Document
	tags     []catalog.Tag
	tagsDown bool
	requests []string
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	record := func(r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		f.mu.Unlock()
	}
	mux.HandleFunc("GET /documents/json", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		json.NewEncoder(w).Encode(f.docs)
	})
	mux.HandleFunc("GET /tags/json", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		if f.tagsDown {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(f.tags)
	})
	mux.HandleFunc("GET /api/job", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.Write([]byte(`{"Busy":{"current":"scan.pdf","progress":50,"queue":2}}`))
	})
	mux.HandleFunc("POST /documents/{id}/tags/{tag}", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		if r.PathValue("id") == "13" {
			http.Error(w, "nope", http.StatusInternalServerError)
		}
	})
	mux.HandleFunc("PATCH /documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		record(r)
	})
	mux.HandleFunc("DELETE /api/tags/{id}", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		if r.PathValue("id") == "9" {
			http.Error(w, "no such tag", http.StatusNotFound)
		}
	})
	return mux
}

func (f *fakeServer) saw(req string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r == req {
			return true
		}
	}
	return false
}

// run executes the root command against srv with an isolated data dir.
func run(t *testing.T, srv *httptest.Server, dataDir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DOCFEED_DATA_DIR", dataDir)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	base := []string{"--config", filepath.Join(dataDir, "missing.json")}
	if srv != nil {
		base = append(base, "--server", srv.URL+"/")
	}
	root.SetArgs(append(base, args...))
	err := root.Execute()
	return out.String(), err
}

func newFake(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	fake := &fakeServer{
		tags: []catalog.Tag{{ID: 3, Name: "Tax"}, {ID: 4, Name: "Bills"}},
	}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	return fake, srv
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, nil, t.TempDir(), "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "docfeed dev") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestStatusCommand(t *testing.T) {
	_, srv := newFake(t)
	out, err := run(t, srv, t.TempDir(), "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(out, "busy: 3 pending, scan.pdf (50%)") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestListCommandGroupsByYear(t *testing.T) {
	fake, srv := newFake(t)
	fake.docs = []catalog.Document{
		{ID: 1, Title: "Invoice", Tags: []catalog.TagID{3}, ImportedDate: time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local).Unix()},
		{ID: 2, Title: "Receipt", ImportedDate: time.Date(2023, 7, 1, 12, 0, 0, 0, time.Local).Unix()},
	}

	out, err := run(t, srv, t.TempDir(), "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, want := range []string{"== 2024 ==", "Invoice", "Tax", "== 2023 ==", "Receipt"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "more documents") {
		t.Error("short page should end the feed")
	}
}

func TestFilterCommandsAreSessionScoped(t *testing.T) {
	_, srv := newFake(t)
	dir := t.TempDir()

	out, err := run(t, srv, dir, "--session", "a", "filter", "add", "tax")
	if err != nil {
		t.Fatalf("filter add failed: %v", err)
	}
	if !strings.Contains(out, "3\tTax") {
		t.Errorf("unexpected output %q", out)
	}

	out, _ = run(t, srv, dir, "--session", "b", "filter", "list")
	if !strings.Contains(out, "no tag filters") {
		t.Errorf("session b should have no filters, got %q", out)
	}

	out, _ = run(t, srv, dir, "--session", "a", "filter", "list")
	if !strings.Contains(out, "Tax") {
		t.Errorf("session a lost its filter, got %q", out)
	}

	out, _ = run(t, srv, dir, "--session", "a", "--fresh", "filter", "list")
	if !strings.Contains(out, "no tag filters") {
		t.Errorf("--fresh should ignore saved filters, got %q", out)
	}
}

func TestTagsCommandFallsBackToSnapshot(t *testing.T) {
	fake, srv := newFake(t)
	dir := t.TempDir()

	if _, err := run(t, srv, dir, "tags"); err != nil {
		t.Fatalf("tags failed: %v", err)
	}

	fake.tagsDown = true
	out, err := run(t, srv, dir, "tags")
	if err != nil {
		t.Fatalf("tags with server down failed: %v", err)
	}
	if !strings.Contains(out, "saved tag list") || !strings.Contains(out, "Bills") {
		t.Errorf("expected snapshot output, got %q", out)
	}
}

func TestTagsDelete(t *testing.T) {
	fake, srv := newFake(t)
	dir := t.TempDir()

	if _, err := run(t, srv, dir, "tags", "delete", "tax"); err == nil {
		t.Fatal("tag delete without --yes should fail")
	}
	if fake.saw("DELETE /api/tags/3") {
		t.Fatal("no delete request expected without --yes")
	}

	if _, err := run(t, srv, dir, "--session", "a", "filter", "add", "tax"); err != nil {
		t.Fatalf("filter add failed: %v", err)
	}
	out, err := run(t, srv, dir, "--session", "a", "tags", "delete", "Tax", "4", "--yes")
	if err != nil {
		t.Fatalf("tags delete failed: %v", err)
	}
	if !fake.saw("DELETE /api/tags/3") || !fake.saw("DELETE /api/tags/4") {
		t.Errorf("delete requests missing: %v", fake.requests)
	}
	if !strings.Contains(out, "3\tdeleted (filter removed)") || !strings.Contains(out, "4\tdeleted\n") {
		t.Errorf("unexpected output %q", out)
	}
	out, _ = run(t, srv, dir, "--session", "a", "filter", "list")
	if !strings.Contains(out, "no tag filters") {
		t.Errorf("filter on deleted tag should be dropped, got %q", out)
	}

	if _, err := run(t, srv, dir, "tags", "delete", "9", "--yes"); err == nil {
		t.Error("server rejection should fail the command")
	}
	if _, err := run(t, srv, dir, "tags", "delete", "nosuch", "--yes"); err == nil {
		t.Error("unknown tag name should fail")
	}

	out, err = run(t, srv, dir, "tags", "list")
	if err != nil || !strings.Contains(out, "Bills") {
		t.Errorf("tags list = %q, %v", out, err)
	}
}

func TestApplyAddTagReportsPartialFailure(t *testing.T) {
	fake, srv := newFake(t)

	out, err := run(t, srv, t.TempDir(), "apply", "add-tag", "--tag", "Bills", "12", "13")
	if err == nil {
		t.Fatal("expected an error for the failed document")
	}
	if !strings.Contains(out, "add-tag: 1 done, 1 failed") {
		t.Errorf("unexpected output %q", out)
	}
	if !fake.saw("POST /documents/12/tags/4") {
		t.Error("tag name was not resolved to its ID")
	}
}

func TestApplyDeleteNeedsYes(t *testing.T) {
	fake, srv := newFake(t)
	if _, err := run(t, srv, t.TempDir(), "apply", "delete", "5"); err == nil {
		t.Fatal("delete without --yes should fail")
	}
	if len(fake.requests) != 0 {
		t.Errorf("no request expected, got %v", fake.requests)
	}
}

func TestPatchCommand(t *testing.T) {
	fake, srv := newFake(t)
	if _, err := run(t, srv, t.TempDir(), "patch", "7", "--title", "New"); err != nil {
		t.Fatalf("patch failed: %v", err)
	}
	if !fake.saw("PATCH /documents/7") {
		t.Error("patch request not sent")
	}
	if _, err := run(t, srv, t.TempDir(), "patch", "7"); err == nil {
		t.Error("patch without changes should fail")
	}
	if _, err := run(t, srv, t.TempDir(), "patch", "8", "--doc-date", "none"); err == nil {
		t.Error("clearing the document date should be rejected")
	}
	if fake.saw("PATCH /documents/8") {
		t.Error("rejected patch must not reach the server")
	}
}

func TestParseDocIDs(t *testing.T) {
	ids, err := parseDocIDs([]string{"1", "42"})
	if err != nil || len(ids) != 2 || ids[1] != 42 {
		t.Errorf("got %v, %v", ids, err)
	}
	if _, err := parseDocIDs([]string{"x"}); err == nil {
		t.Error("expected error for non-numeric ID")
	}
}

func TestParseDocDate(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"none", true},
		{"", true},
		{"2023-04-05", false},
		{"04/05/2023", true},
	}
	for _, tt := range tests {
		got, err := parseDocDate(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseDocDate(%q) err = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && got == nil {
			t.Errorf("parseDocDate(%q) returned no date", tt.in)
		}
	}
}

func TestFormatJobStatus(t *testing.T) {
	if got := formatJobStatus(catalog.JobStatus{}); got != "idle" {
		t.Errorf("got %q", got)
	}
	if got := formatJobStatus(catalog.JobStatus{Busy: true}); got != "busy: 1 pending" {
		t.Errorf("got %q", got)
	}
}

func TestEventsCommandFilters(t *testing.T) {
	dir := t.TempDir()
	logs := filepath.Join(dir, "logs")
	if err := os.MkdirAll(logs, 0755); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	now := time.Now()
	enc.Encode(otel.Event{Time: now, Level: otel.LevelDebug, Kind: otel.KindPageFetch, Gen: 1, Ticket: "t-1"})
	enc.Encode(otel.Event{Time: now, Level: otel.LevelWarn, Kind: otel.KindPageError, Gen: 1, Page: 2, Err: "refused"})
	enc.Encode(otel.Event{Time: now, Level: otel.LevelInfo, Kind: otel.KindBatchDone, Count: 3, Failed: 1})
	buf.WriteString("not json\n")
	if err := os.WriteFile(filepath.Join(logs, "docfeed-events.jsonl"), buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, nil, dir, "events", "--kind", "feed")
	if err != nil {
		t.Fatalf("events failed: %v", err)
	}
	if !strings.Contains(out, "feed.fetch") || !strings.Contains(out, "err=refused") || strings.Contains(out, "batch.done") {
		t.Errorf("kind filter not applied:\n%s", out)
	}

	out, _ = run(t, nil, dir, "events", "--level", "warn")
	if strings.Contains(out, "feed.fetch") || !strings.Contains(out, "feed.error") {
		t.Errorf("level filter not applied:\n%s", out)
	}

	out, _ = run(t, nil, dir, "events", "--tail", "1")
	if !strings.Contains(out, "batch.done") || !strings.Contains(out, "failed=1") || strings.Contains(out, "feed.error") {
		t.Errorf("tail not applied:\n%s", out)
	}
}
