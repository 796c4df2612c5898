// Package lookup provides the reference-key collaborators consulted by
// referential rules: an in-memory set for tests and small files, and
// SQLite- and Postgres-backed sets for reference data that already
// lives in a database. All implementations satisfy quality.Lookup.
package lookup

import (
	"context"
	"sync"
)

// Memory is an in-memory key set. Safe for concurrent use; chunked
// pipeline runs hit lookups from multiple goroutines.
type Memory struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

// NewMemory builds a set from the given keys.
func NewMemory(keys ...string) *Memory {
	m := &Memory{keys: make(map[string]struct{}, len(keys))}
	for _, key := range keys {
		m.keys[key] = struct{}{}
	}
	return m
}

// Add inserts keys into the set.
func (m *Memory) Add(keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		m.keys[key] = struct{}{}
	}
}

// Exists implements quality.Lookup.
func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.keys[key]
	return ok, nil
}

// Len returns the number of keys in the set.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}
