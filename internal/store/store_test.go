package store

import (
	"sync"
	"testing"

	"github.com/abelbrown/docfeed/internal/catalog"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOpen(t *testing.T) {
	st := openTestStore(t)

	for _, table := range []string{"slots", "tag_snapshots"} {
		var name string
		err := st.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Fatalf("%s table not created: %v", table, err)
		}
	}
}

func TestGetMissingSlot(t *testing.T) {
	st := openTestStore(t)

	value, err := st.Get("s1", "filterTags")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != nil {
		t.Errorf("expected nil for missing slot, got %q", value)
	}
}

func TestPutOverwrites(t *testing.T) {
	st := openTestStore(t)

	if err := st.Put("s1", "filterTags", []byte("[1]")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := st.Put("s1", "filterTags", []byte("[1,2]")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	value, err := st.Get("s1", "filterTags")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(value) != "[1,2]" {
		t.Errorf("expected [1,2], got %q", value)
	}
}

func TestSlotsAreSessionScoped(t *testing.T) {
	st := openTestStore(t)

	a := st.Slot("tab-a", "filterTags")
	b := st.Slot("tab-b", "filterTags")

	if err := a.Save([]byte("[3]")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := b.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != nil {
		t.Errorf("session tab-b should not see tab-a's value, got %q", got)
	}

	got, err = a.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(got) != "[3]" {
		t.Errorf("expected [3], got %q", got)
	}

	sessions, err := st.Sessions()
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0] != "tab-a" {
		t.Errorf("unexpected sessions: %v", sessions)
	}
}

func TestDelete(t *testing.T) {
	st := openTestStore(t)

	st.Put("s1", "filterTags", []byte("[1]"))
	if err := st.Delete("s1", "filterTags"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := st.Delete("s1", "filterTags"); err != nil {
		t.Fatalf("second Delete should be a no-op: %v", err)
	}
	value, _ := st.Get("s1", "filterTags")
	if value != nil {
		t.Errorf("expected slot gone, got %q", value)
	}
}

func TestTagSnapshot(t *testing.T) {
	st := openTestStore(t)

	_, _, ok, err := st.LoadTags("http://a")
	if err != nil || ok {
		t.Fatalf("expected no snapshot, got ok=%v err=%v", ok, err)
	}

	tags := []catalog.Tag{
		{ID: 1, Name: "Invoices", Color: "#ff0000"},
		{ID: 2, Name: "Old", Deactivated: true},
	}
	if err := st.SaveTags("http://a", tags); err != nil {
		t.Fatalf("SaveTags failed: %v", err)
	}

	got, savedAt, ok, err := st.LoadTags("http://a")
	if err != nil || !ok {
		t.Fatalf("LoadTags: ok=%v err=%v", ok, err)
	}
	if savedAt.IsZero() {
		t.Error("expected saved_at to be set")
	}
	if len(got) != 2 || got[0] != tags[0] || got[1] != tags[1] {
		t.Errorf("round trip mismatch: %+v", got)
	}

	if _, _, ok, _ := st.LoadTags("http://b"); ok {
		t.Error("snapshots should be keyed by server")
	}
}

func TestConcurrentPut(t *testing.T) {
	st := openTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := st.Put("s1", "filterTags", []byte{byte('0' + i%10)}); err != nil {
				t.Errorf("Put failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	value, err := st.Get("s1", "filterTags")
	if err != nil || len(value) != 1 {
		t.Errorf("expected a single-byte value, got %q err=%v", value, err)
	}
}
