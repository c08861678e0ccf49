// README: In-memory staff directory for tests and local runs.
package staff

import (
	"context"
	"sort"
	"strings"
	"sync"

	"brigade/internal/types"
)

type MemoryStore struct {
	mu          sync.RWMutex
	restaurants map[types.ID]Restaurant
	employees   []Employee
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{restaurants: make(map[types.ID]Restaurant)}
}

func (m *MemoryStore) AddRestaurant(r Restaurant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restaurants[r.ID] = r
}

// AddEmployee keeps insertion order, which is the lookup order.
func (m *MemoryStore) AddEmployee(e Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees = append(m.employees, e)
}

func (m *MemoryStore) RestaurantExists(_ context.Context, id types.ID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.restaurants[id]
	return ok, nil
}

func (m *MemoryStore) ListRestaurants(_ context.Context) ([]types.ID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]types.ID, 0, len(m.restaurants))
	for id := range m.restaurants {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MemoryStore) FindEmployeeByDuty(_ context.Context, restaurantID types.ID, duty string) (types.ID, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.employees {
		if e.RestaurantID == restaurantID && strings.EqualFold(e.Duty, duty) {
			return e.ID, true, nil
		}
	}
	return "", false, nil
}
