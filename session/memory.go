package session

import (
	"context"
	"sync"
)

// MemoryBackend keeps sessions in process memory. It is meant for tests and single-node
// development; entries are lost on restart.
type MemoryBackend struct {
	mu     sync.RWMutex
	scopes map[string]map[string]string
}

// NewMemoryBackend returns an empty in-memory [Backend].
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{scopes: make(map[string]map[string]string)}
}

func (m *MemoryBackend) Read(_ context.Context, scope string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.scopes[scope]
	out := make(map[string]string, len(entries))
	for k, v := range entries {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryBackend) Write(_ context.Context, scope string, set map[string]string, remove []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, ok := m.scopes[scope]
	if !ok {
		entries = make(map[string]string, len(set))
		m.scopes[scope] = entries
	}
	for k, v := range set {
		entries[k] = v
	}
	for _, k := range remove {
		delete(entries, k)
	}
	if len(entries) == 0 {
		delete(m.scopes, scope)
	}
	return nil
}

func (m *MemoryBackend) Drop(_ context.Context, scope string) error {
	m.mu.Lock()
	delete(m.scopes, scope)
	m.mu.Unlock()
	return nil
}

// Len returns the number of scopes holding at least one entry.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.scopes)
}
