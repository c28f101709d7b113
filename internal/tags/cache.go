// Package tags caches the catalog's tag definitions for one session.
package tags

import (
	"sort"
	"strings"

	"github.com/abelbrown/docfeed/internal/catalog"
)

// UnknownName is shown for tag IDs the cache cannot resolve.
const UnknownName = "unknown tag"

// Cache resolves tag IDs to display attributes. Built once per session and
// read-only afterwards.
type Cache struct {
	byID  map[catalog.TagID]catalog.Tag
	order []catalog.TagID // active tags sorted by name
}

// New builds a cache from the full tag list, deactivated tags included.
func New(all []catalog.Tag) *Cache {
	c := &Cache{byID: make(map[catalog.TagID]catalog.Tag, len(all))}
	for _, t := range all {
		c.byID[t.ID] = t
	}
	for _, t := range c.byID {
		if !t.Deactivated {
			c.order = append(c.order, t.ID)
		}
	}
	sort.Slice(c.order, func(i, j int) bool {
		a, b := c.byID[c.order[i]], c.byID[c.order[j]]
		if !strings.EqualFold(a.Name, b.Name) {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
		return a.ID < b.ID
	})
	return c
}

// Lookup returns the tag for id, deactivated or not.
func (c *Cache) Lookup(id catalog.TagID) (catalog.Tag, bool) {
	if c == nil {
		return catalog.Tag{}, false
	}
	t, ok := c.byID[id]
	return t, ok
}

// Resolve is Lookup with the unknown-tag fallback. Never fails.
func (c *Cache) Resolve(id catalog.TagID) catalog.Tag {
	if t, ok := c.Lookup(id); ok {
		return t
	}
	return catalog.Tag{ID: id, Name: UnknownName}
}

// Active returns selectable tags (deactivated excluded), sorted by name.
func (c *Cache) Active() []catalog.Tag {
	if c == nil {
		return nil
	}
	out := make([]catalog.Tag, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Match returns active tags whose name contains needle, case-insensitively.
// An empty needle matches everything.
func (c *Cache) Match(needle string) []catalog.Tag {
	needle = strings.ToLower(strings.TrimSpace(needle))
	all := c.Active()
	if needle == "" {
		return all
	}
	out := all[:0]
	for _, t := range all {
		if strings.Contains(strings.ToLower(t.Name), needle) {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of known tags, deactivated included.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byID)
}
