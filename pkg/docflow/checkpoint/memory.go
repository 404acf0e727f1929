package checkpoint

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory checkpoint store.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]map[string][]byte // sessionID -> namespace -> encoded snapshot
	saved  map[string]map[string]time.Time
	closed bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:  make(map[string]map[string][]byte),
		saved: make(map[string]map[string]time.Time),
	}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, sessionID, ns string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	data, ok := m.data[sessionID][ns]
	if !ok {
		return nil, ErrNotFound
	}
	// Decoding yields a fresh copy the caller may modify.
	return Unmarshal(data)
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, sessionID, ns string, snap *Snapshot) error {
	data, err := snap.Marshal()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	if m.data[sessionID] == nil {
		m.data[sessionID] = make(map[string][]byte)
		m.saved[sessionID] = make(map[string]time.Time)
	}
	m.data[sessionID][ns] = data
	m.saved[sessionID][ns] = snap.SavedAt
	return nil
}

// Has implements Store.
func (m *MemoryStore) Has(_ context.Context, sessionID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, ErrStoreClosed
	}
	return len(m.data[sessionID]) > 0, nil
}

// Sweep implements Store.
func (m *MemoryStore) Sweep(_ context.Context, maxAge time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrStoreClosed
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for sessionID, byNS := range m.saved {
		for ns, at := range byNS {
			if at.Before(cutoff) {
				delete(byNS, ns)
				delete(m.data[sessionID], ns)
				removed++
			}
		}
		if len(byNS) == 0 {
			delete(m.saved, sessionID)
			delete(m.data, sessionID)
		}
	}
	return removed, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	m.saved = nil
	return nil
}

// Len returns the total number of snapshots across all sessions.
// Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, byNS := range m.data {
		count += len(byNS)
	}
	return count
}
