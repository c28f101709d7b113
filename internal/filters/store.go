// Package filters persists the set of tag filters narrowing the feed.
package filters

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/abelbrown/docfeed/internal/catalog"
	"github.com/abelbrown/docfeed/internal/logging"
)

// SlotName is the storage slot the filter set is kept under.
const SlotName = "filterTags"

// Slot is one persisted value. store.Slot satisfies it.
type Slot interface {
	Load() ([]byte, error)
	Save([]byte) error
}

// Store is the active tag filter set for one session.
// Reads never fail; every mutation is written back before it returns.
type Store struct {
	mu   sync.Mutex
	slot Slot
	tags []catalog.TagID
}

// Open reads the persisted set from slot. Missing, unreadable or malformed
// data yields an empty set; the cause is logged, never returned.
func Open(slot Slot) *Store {
	s := &Store{slot: slot}

	data, err := slot.Load()
	if err != nil {
		logging.Warn("filters: could not read stored filter set, starting empty", "error", err)
		return s
	}
	if len(data) == 0 {
		return s
	}

	tags, err := decode(data)
	if err != nil {
		logging.Warn("filters: stored filter set is corrupt, starting empty", "error", err)
		return s
	}
	s.tags = tags
	return s
}

// decode parses a JSON array of tag IDs and collapses duplicates.
func decode(data []byte) ([]catalog.TagID, error) {
	var raw []catalog.TagID
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return dedup(raw), nil
}

func dedup(ids []catalog.TagID) []catalog.TagID {
	seen := make(map[catalog.TagID]bool, len(ids))
	out := make([]catalog.TagID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Active returns the filter set in insertion order. The slice is a copy.
func (s *Store) Active() []catalog.TagID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]catalog.TagID, len(s.tags))
	copy(out, s.tags)
	return out
}

// Len returns the number of active filters.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tags)
}

// Contains reports whether id is an active filter.
func (s *Store) Contains(id catalog.TagID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(id) >= 0
}

func (s *Store) indexOf(id catalog.TagID) int {
	for i, t := range s.tags {
		if t == id {
			return i
		}
	}
	return -1
}

// Add inserts id. changed is false when id was already present, in which
// case nothing is written. The in-memory set is updated even if the write
// fails; the error reports the persistence failure.
func (s *Store) Add(id catalog.TagID) (changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(id) >= 0 {
		return false, nil
	}
	s.tags = append(s.tags, id)
	return true, s.persist()
}

// Remove deletes id. changed is false when id was not present.
func (s *Store) Remove(id catalog.TagID) (changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false, nil
	}
	s.tags = append(s.tags[:i:i], s.tags[i+1:]...)
	return true, s.persist()
}

// Clear removes every filter. changed is false when the set was already empty.
func (s *Store) Clear() (changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tags) == 0 {
		return false, nil
	}
	s.tags = nil
	return true, s.persist()
}

// persist writes the set as a JSON array. Caller holds s.mu.
func (s *Store) persist() error {
	tags := s.tags
	if tags == nil {
		tags = []catalog.TagID{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encode filter set: %w", err)
	}
	if err := s.slot.Save(data); err != nil {
		logging.Warn("filters: could not persist filter set", "error", err)
		return fmt.Errorf("persist filter set: %w", err)
	}
	return nil
}

// MemorySlot is a Slot held in memory, for tests and --fresh sessions.
type MemorySlot struct {
	mu   sync.Mutex
	data []byte
	Err  error // returned by Load and Save when set
}

// NewMemorySlot returns a slot pre-filled with data (may be nil).
func NewMemorySlot(data []byte) *MemorySlot {
	return &MemorySlot{data: data}
}

func (m *MemorySlot) Load() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.data, nil
}

func (m *MemorySlot) Save(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.data = append([]byte(nil), data...)
	return nil
}

// Bytes returns the last saved value.
func (m *MemorySlot) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data
}
