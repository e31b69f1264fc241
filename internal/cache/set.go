package cache

import "sync"

// Set is a capacity-bounded existence cache. When full, inserting a new key
// evicts the oldest inserted key.
type Set[K comparable] struct {
	mu       sync.RWMutex
	items    map[K]struct{}
	order    []K
	capacity int
}

// NewSet creates a Set holding at most capacity keys. A capacity <= 0 means
// unbounded.
func NewSet[K comparable](capacity int) *Set[K] {
	return &Set[K]{
		items:    make(map[K]struct{}),
		capacity: capacity,
	}
}

// Contains reports whether key is present.
func (s *Set[K]) Contains(key K) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[key]
	return ok
}

// Insert adds key and reports whether it was newly added.
func (s *Set[K]) Insert(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[key]; ok {
		return false
	}
	if s.capacity > 0 && len(s.items) >= s.capacity {
		s.evictOldestLocked()
	}
	s.items[key] = struct{}{}
	s.order = append(s.order, key)
	return true
}

// Remove deletes key and reports whether it was present.
func (s *Set[K]) Remove(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[key]; !ok {
		return false
	}
	delete(s.items, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// All returns the keys in insertion order.
func (s *Set[K]) All() []K {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]K, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of keys.
func (s *Set[K]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Clear removes all keys.
func (s *Set[K]) Clear() {
	s.mu.Lock()
	s.items = make(map[K]struct{})
	s.order = nil
	s.mu.Unlock()
}

func (s *Set[K]) evictOldestLocked() {
	if len(s.order) == 0 {
		return
	}
	oldest := s.order[0]
	s.order = s.order[1:]
	delete(s.items, oldest)
}
