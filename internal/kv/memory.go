package kv

import (
	"context"
	"sync"
)

// Memory keeps values in process memory. A positive limit caps the total
// number of value bytes held, mimicking a browser storage quota.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
	limit  int
	used   int
}

func NewMemory(limit int) *Memory {
	return &Memory{values: map[string]string{}, limit: limit}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	used := m.used - len(m.values[key]) + len(value)
	if m.limit > 0 && used > m.limit {
		return ErrQuotaExceeded
	}
	m.values[key] = value
	m.used = used
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.used -= len(m.values[key])
	delete(m.values, key)
	return nil
}
