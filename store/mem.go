package store

import (
	"context"
	"encoding/json"
	"sync"
)

// MemStore is an in-memory backend. Used by tests and as the degraded
// fallback when no durable backend can be opened.
type MemStore struct {
	mu   sync.Mutex
	data map[string]json.RawMessage

	// FailSets makes every Set return this error when non-nil (test hook
	// for degraded-persistence paths).
	FailSets error
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{data: map[string]json.RawMessage{}}
}

// Get retrieves a value by key. Returns (nil, nil) when absent.
func (m *MemStore) Get(_ context.Context, key string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out, nil
}

// Set stores a value by key.
func (m *MemStore) Set(_ context.Context, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSets != nil {
		return m.FailSets
	}
	v := make(json.RawMessage, len(value))
	copy(v, value)
	m.data[key] = v
	return nil
}

// Delete removes a value by key.
func (m *MemStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Keys returns a snapshot of all present keys (test helper).
func (m *MemStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}
