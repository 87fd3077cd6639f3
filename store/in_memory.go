package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/agentmatrix/core"
)

// InMemoryStore is a volatile SnapshotStore keeping snapshots in a process
// local map. It is safe for concurrent access and best suited for tests or
// ephemeral demo setups. Snapshots are value types; stored and returned
// copies never alias live matrix state.
type InMemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]core.Snapshot
}

// NewInMemoryStore constructs an empty in-memory snapshot store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{snapshots: make(map[string]core.Snapshot)}
}

// Save stores the snapshot under the given name, overwriting any previous
// snapshot with that name.
func (s *InMemoryStore) Save(name string, snap core.Snapshot) error {
	if name == "" {
		return fmt.Errorf("snapshot name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[name] = snap
	return nil
}

// Load returns the named snapshot.
func (s *InMemoryStore) Load(name string) (core.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[name]
	if !ok {
		return core.Snapshot{}, fmt.Errorf("snapshot %s not found", name)
	}
	return snap, nil
}

// List returns the stored snapshot names sorted lexically.
func (s *InMemoryStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.snapshots))
	for name := range s.snapshots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the named snapshot; deleting a missing name is a no-op.
func (s *InMemoryStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, name)
	return nil
}
