// README: In-memory stock ledger for tests and local runs.
package stock

import (
	"context"
	"sync"

	"brigade/internal/types"
)

type MemoryStore struct {
	mu     sync.Mutex
	ledger map[types.ID]map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ledger: make(map[types.ID]map[string]int)}
}

func (m *MemoryStore) Quantity(_ context.Context, restaurantID types.ID, ingredient string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.ledger[restaurantID][ingredient]
	return n, ok, nil
}

func (m *MemoryStore) SetQuantity(_ context.Context, restaurantID types.ID, ingredient string, qty int) error {
	if qty < 0 {
		return ErrNegativeQuantity
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bucket(restaurantID)[ingredient] = qty
	return nil
}

func (m *MemoryStore) Restock(_ context.Context, restaurantID types.ID, ingredients []string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bucket(restaurantID)
	for _, ing := range ingredients {
		b[ing] += qty
	}
	return nil
}

func (m *MemoryStore) Snapshot(_ context.Context, restaurantID types.ID) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.ledger[restaurantID]))
	for k, v := range m.ledger[restaurantID] {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) bucket(restaurantID types.ID) map[string]int {
	b, ok := m.ledger[restaurantID]
	if !ok {
		b = make(map[string]int)
		m.ledger[restaurantID] = b
	}
	return b
}
