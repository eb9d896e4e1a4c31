// Package selection keeps the set of chosen products of the loaded
// collection. The selection is always a subset of the loaded ids.
package selection

import "sync"

type Set struct {
	mu       sync.RWMutex
	loaded   []string
	known    map[string]bool
	selected map[string]bool
}

func New() *Set {
	return &Set{known: map[string]bool{}, selected: map[string]bool{}}
}

// Load replaces the loaded ids and clears the selection.
func (s *Set) Load(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = append([]string(nil), ids...)
	s.known = make(map[string]bool, len(ids))
	for _, id := range ids {
		s.known[id] = true
	}
	s.selected = map[string]bool{}
}

// Toggle flips id and reports whether it is now selected. Unknown ids are
// ignored.
func (s *Set) Toggle(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.known[id] {
		return false
	}
	if s.selected[id] {
		delete(s.selected, id)
		return false
	}
	s.selected[id] = true
	return true
}

func (s *Set) SelectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.loaded {
		s.selected[id] = true
	}
}

func (s *Set) Clear() {
	s.mu.Lock()
	s.selected = map[string]bool{}
	s.mu.Unlock()
}

func (s *Set) IsSelected(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected[id]
}

func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.selected)
}

// IDs returns the selected ids in load order.
func (s *Set) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.selected))
	for _, id := range s.loaded {
		if s.selected[id] {
			out = append(out, id)
		}
	}
	return out
}

func (s *Set) Loaded() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.loaded...)
}

// Restore loads ids and then selects the given subset, dropping anything
// not loaded.
func (s *Set) Restore(ids, selected []string) {
	s.Load(ids)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range selected {
		if s.known[id] {
			s.selected[id] = true
		}
	}
}
