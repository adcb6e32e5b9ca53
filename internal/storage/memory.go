package storage

import (
	"context"
	"sync"
)

// MemoryContainerManager tracks containers in memory. Used in tests and
// single-node development where no blob backend is wired.
type MemoryContainerManager struct {
	mu         sync.RWMutex
	containers map[string]struct{}
}

func NewMemoryContainerManager() *MemoryContainerManager {
	return &MemoryContainerManager{containers: make(map[string]struct{})}
}

func (m *MemoryContainerManager) EnsureContainer(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.containers[name] = struct{}{}
	return nil
}

func (m *MemoryContainerManager) DeleteContainer(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.containers, name)
	return nil
}

// Exists reports whether the container is tracked. Test helper.
func (m *MemoryContainerManager) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.containers[name]
	return ok
}

var _ ContainerManager = (*MemoryContainerManager)(nil)
