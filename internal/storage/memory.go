package storage

import (
	"context"
	"sync"
)

// MemoryBackend keeps slots in process memory. Used for tests and for
// single-node deployments that accept losing carts on restart.
type MemoryBackend struct {
	mu    sync.RWMutex
	slots map[string]map[string][]byte // namespace -> key -> value
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{slots: make(map[string]map[string][]byte)}
}

func (m *MemoryBackend) Get(_ context.Context, namespace, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.slots[namespace][key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryBackend) Put(_ context.Context, namespace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.slots[namespace]
	if !ok {
		ns = make(map[string][]byte)
		m.slots[namespace] = ns
	}
	v := make([]byte, len(value))
	copy(v, value)
	ns[key] = v
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.slots[namespace]
	if !ok {
		return nil
	}
	delete(ns, key)
	if len(ns) == 0 {
		delete(m.slots, namespace)
	}
	return nil
}

func (m *MemoryBackend) Close() error {
	return nil
}
