package dedup

import (
	"context"
	"strings"
	"sync"
)

// Memory is a process-local Store. State is lost on restart, so it is only
// suitable for tests and dry runs.
type Memory struct {
	mu   sync.Mutex
	keys map[string]Key
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{keys: make(map[string]Key)}
}

func (m *Memory) Check(_ context.Context, key Key) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[key.String()]
	return ok, nil
}

func (m *Memory) Mark(_ context.Context, key Key) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s := key.String()
	if _, ok := m.keys[s]; ok {
		return false, nil
	}
	m.keys[s] = key
	return true, nil
}

func (m *Memory) ClearPrefix(_ context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for s := range m.keys {
		if strings.HasPrefix(s, prefix) {
			delete(m.keys, s)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Prune(_ context.Context, subject, keepScope string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for s, k := range m.keys {
		if k.Subject == subject && k.Scope != keepScope {
			delete(m.keys, s)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored markers.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}
