package tags

import (
	"testing"

	"github.com/abelbrown/docfeed/internal/catalog"
)

func sample() *Cache {
	return New([]catalog.Tag{
		{ID: 3, Name: "taxes", Color: "#00ff00"},
		{ID: 1, Name: "Invoices", Color: "#ff0000"},
		{ID: 2, Name: "Archive", Deactivated: true},
		{ID: 4, Name: "insurance"},
	})
}

func TestResolveUnknownAndDeactivated(t *testing.T) {
	c := sample()

	if got := c.Resolve(2); got.Name != "Archive" {
		t.Errorf("deactivated tag should still resolve, got %+v", got)
	}
	got := c.Resolve(99)
	if got.Name != UnknownName || got.ID != 99 {
		t.Errorf("missing tag should fall back to unknown, got %+v", got)
	}

	var nilCache *Cache
	if nilCache.Resolve(1).Name != UnknownName {
		t.Error("nil cache should resolve everything as unknown")
	}
}

func TestActiveExcludesDeactivatedAndSorts(t *testing.T) {
	active := sample().Active()
	want := []catalog.TagID{4, 1, 3}
	if len(active) != len(want) {
		t.Fatalf("expected %d active tags, got %+v", len(want), active)
	}
	for i, id := range want {
		if active[i].ID != id {
			t.Errorf("position %d: got %d, want %d", i, active[i].ID, id)
		}
	}
}

func TestMatch(t *testing.T) {
	c := sample()

	tests := []struct {
		needle string
		want   int
	}{
		{"", 3},
		{"IN", 2},
		{"tax", 1},
		{"arch", 0},
		{"zzz", 0},
	}
	for _, tt := range tests {
		t.Run(tt.needle, func(t *testing.T) {
			if got := c.Match(tt.needle); len(got) != tt.want {
				t.Errorf("Match(%q) = %d tags, want %d", tt.needle, len(got), tt.want)
			}
		})
	}

	if len(c.Active()) != 3 {
		t.Error("Match must not mutate the cache")
	}
}
