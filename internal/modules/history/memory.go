// README: In-memory archive for tests and local runs.
package history

import (
	"context"
	"sort"
	"sync"

	"brigade/internal/modules/order"
	"brigade/internal/types"
)

type MemoryStore struct {
	mu      sync.Mutex
	records map[types.ID]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[types.ID]Record)}
}

func (m *MemoryStore) Archive(_ context.Context, o *order.Order) error {
	rec, err := recordFrom(o)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.OrderID]; !ok {
		m.records[rec.OrderID] = rec
	}
	return nil
}

func (m *MemoryStore) ListByRestaurant(_ context.Context, restaurantID types.ID, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, rec := range m.records {
		if rec.RestaurantID == restaurantID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.After(out[j].CompletedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
