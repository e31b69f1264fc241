// Package cache provides the in-process expiring stores used to avoid
// redundant RPC round-trips for account and mint lookups.
package cache

import (
	"sync"
	"time"
)

// Entry is a cached value with an absolute expiry instant.
type Entry[V any] struct {
	Value     V
	ExpiresAt time.Time
}

// Expired reports whether the entry is past its expiry at now.
func (e Entry[V]) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// TTLMap is a lock-guarded map whose entries expire. Expiry is enforced on
// read; ClearExpired reclaims memory and may lag behind.
type TTLMap[K comparable, V any] struct {
	mu         sync.RWMutex
	entries    map[K]Entry[V]
	defaultTTL time.Duration
	now        func() time.Time
}

// NewTTLMap creates a TTLMap whose Insert uses defaultTTL when no ttl is
// given.
func NewTTLMap[K comparable, V any](defaultTTL time.Duration) *TTLMap[K, V] {
	return &TTLMap[K, V]{
		entries:    make(map[K]Entry[V]),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Get returns the value for key if present and not expired.
func (m *TTLMap[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	var zero V
	if !ok || e.Expired(m.now()) {
		return zero, false
	}
	return e.Value, true
}

// Insert stores value under key. A ttl <= 0 selects the default TTL.
func (m *TTLMap[K, V]) Insert(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	e := Entry[V]{Value: value, ExpiresAt: m.now().Add(ttl)}

	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
}

// Remove deletes key and returns the previous live value, if any.
func (m *TTLMap[K, V]) Remove(key K) (V, bool) {
	m.mu.Lock()
	e, ok := m.entries[key]
	delete(m.entries, key)
	m.mu.Unlock()

	var zero V
	if !ok || e.Expired(m.now()) {
		return zero, false
	}
	return e.Value, true
}

// ClearExpired drops every expired entry and returns how many were removed.
func (m *TTLMap[K, V]) ClearExpired() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k, e := range m.entries {
		if e.Expired(now) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, including expired ones not yet
// swept.
func (m *TTLMap[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Clear removes all entries.
func (m *TTLMap[K, V]) Clear() {
	m.mu.Lock()
	m.entries = make(map[K]Entry[V])
	m.mu.Unlock()
}
