package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and ephemeral runs. Safe for
// concurrent use.
type MemoryStore struct {
	mu         sync.Mutex
	state      string
	stateSet   bool
	lastSynced time.Time
	syncedSet  bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// PersistedState returns the saved token, ok=false when never written.
func (m *MemoryStore) PersistedState(_ context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state, m.stateSet, nil
}

// SetPersistedState overwrites the token.
func (m *MemoryStore) SetPersistedState(_ context.Context, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = state
	m.stateSet = true

	return nil
}

// LastSynced returns the recorded time, ok=false when never written.
func (m *MemoryStore) LastSynced(_ context.Context) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lastSynced, m.syncedSet, nil
}

// SetLastSynced records a successful sync time.
func (m *MemoryStore) SetLastSynced(_ context.Context, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastSynced = t
	m.syncedSet = true

	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
