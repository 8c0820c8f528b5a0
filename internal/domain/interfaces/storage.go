package interfaces

import (
	"context"
	"sort"
	"sync"

	"github.com/veritrail/veritrail/internal/domain/entities"
)

// FactStore persists normalized facts for the external policy evaluator.
// Writes are keyed by (component, check); concurrent writers within one run
// never contend on the same key, so implementations need no cross-key
// locking.
type FactStore interface {
	// Upsert writes the fact, replacing any prior fact with the same
	// (ComponentID, CheckID) key.
	Upsert(ctx context.Context, fact entities.Fact) error

	// List returns all facts for a component, ordered by check ID.
	List(ctx context.Context, componentID string) ([]entities.Fact, error)

	// Close releases store resources.
	Close() error
}

// MemoryFactStore is an in-memory FactStore (useful for tests).
type MemoryFactStore struct {
	mu    sync.Mutex
	facts map[string]entities.Fact
}

// NewMemoryFactStore creates an empty in-memory fact store.
func NewMemoryFactStore() *MemoryFactStore {
	return &MemoryFactStore{facts: make(map[string]entities.Fact)}
}

// Upsert replaces any prior fact with the same (component, check) key.
func (m *MemoryFactStore) Upsert(_ context.Context, fact entities.Fact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facts[fact.ComponentID+"\x00"+fact.CheckID] = fact
	return nil
}

// List returns the component's facts ordered by check ID.
func (m *MemoryFactStore) List(_ context.Context, componentID string) ([]entities.Fact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Fact
	for _, f := range m.facts {
		if f.ComponentID == componentID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckID < out[j].CheckID })
	return out, nil
}

// Close does nothing.
func (m *MemoryFactStore) Close() error { return nil }
