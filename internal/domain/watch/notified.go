package watch

import (
	"sync"
)

// NotifiedSet is a mutex-guarded set of keys already alerted in the
// current session.
type NotifiedSet[K comparable] struct {
	mu   sync.Mutex
	keys map[K]struct{}
}

// NewNotifiedSet returns an empty set.
func NewNotifiedSet[K comparable]() *NotifiedSet[K] {
	return &NotifiedSet[K]{keys: make(map[K]struct{})}
}

// Mark adds k and reports whether it was absent. Of several concurrent
// Mark calls for one key exactly one returns true.
func (s *NotifiedSet[K]) Mark(k K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[k]; ok {
		return false
	}
	s.keys[k] = struct{}{}
	return true
}

// Unmark removes k and reports whether it was present.
func (s *NotifiedSet[K]) Unmark(k K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[k]; !ok {
		return false
	}
	delete(s.keys, k)
	return true
}

// Has reports membership.
func (s *NotifiedSet[K]) Has(k K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[k]
	return ok
}

// Replace makes keys the whole content of the set.
func (s *NotifiedSet[K]) Replace(keys []K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = make(map[K]struct{}, len(keys))
	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
}

// Keys returns a snapshot of the members in no particular order.
func (s *NotifiedSet[K]) Keys() []K {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]K, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	return out
}

// Len returns the number of members.
func (s *NotifiedSet[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// Clear empties the set.
func (s *NotifiedSet[K]) Clear() {
	s.Replace(nil)
}
