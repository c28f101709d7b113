// Package selection tracks which rendered documents are selected for a
// batch mutation.
package selection

import "github.com/abelbrown/docfeed/internal/catalog"

// Set is the selection state. Membership is only meaningful while selection
// mode is active; it never touches pagination state.
type Set struct {
	active bool
	order  []catalog.DocID
	member map[catalog.DocID]bool
}

// New returns an inactive, empty set.
func New() *Set {
	return &Set{member: make(map[catalog.DocID]bool)}
}

// Enter turns selection mode on. Entering twice keeps the current members.
func (s *Set) Enter() {
	s.active = true
}

// Exit turns selection mode off and drops every member.
func (s *Set) Exit() {
	s.active = false
	s.Clear()
}

// Active reports whether selection mode is on.
func (s *Set) Active() bool {
	return s.active
}

// Toggle flips membership of id and reports whether it is now selected.
// Outside selection mode it does nothing and returns false.
func (s *Set) Toggle(id catalog.DocID) bool {
	if !s.active {
		return false
	}
	if s.member[id] {
		s.remove(id)
		return false
	}
	s.member[id] = true
	s.order = append(s.order, id)
	return true
}

// SelectAll adds every visible ID. It enters selection mode if needed.
func (s *Set) SelectAll(visible []catalog.DocID) {
	s.active = true
	for _, id := range visible {
		if !s.member[id] {
			s.member[id] = true
			s.order = append(s.order, id)
		}
	}
}

// Clear drops every member but stays in the current mode.
func (s *Set) Clear() {
	s.order = nil
	s.member = make(map[catalog.DocID]bool)
}

// Contains reports whether id is selected.
func (s *Set) Contains(id catalog.DocID) bool {
	return s.member[id]
}

// Len returns the number of selected IDs.
func (s *Set) Len() int {
	return len(s.order)
}

// IDs returns the selected IDs in the order they were selected.
func (s *Set) IDs() []catalog.DocID {
	out := make([]catalog.DocID, len(s.order))
	copy(out, s.order)
	return out
}

// Retain keeps only the given IDs selected, used after a batch to leave
// the failed documents selected for a retry.
func (s *Set) Retain(ids []catalog.DocID) {
	keep := make(map[catalog.DocID]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	s.filter(func(id catalog.DocID) bool { return keep[id] })
}

// Prune drops members that are no longer rendered.
func (s *Set) Prune(visible []catalog.DocID) {
	s.Retain(visible)
}

func (s *Set) remove(id catalog.DocID) {
	s.filter(func(x catalog.DocID) bool { return x != id })
}

func (s *Set) filter(keep func(catalog.DocID) bool) {
	out := s.order[:0]
	for _, id := range s.order {
		if keep(id) {
			out = append(out, id)
		} else {
			delete(s.member, id)
		}
	}
	s.order = out
}
