// README: In-memory catalog used by tests and local runs.
package catalog

import (
	"context"
	"sync"

	"brigade/internal/types"
)

type MemoryStore struct {
	mu        sync.RWMutex
	proposals map[types.ID]Proposal
	menus     map[types.ID]Menu
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		proposals: make(map[types.ID]Proposal),
		menus:     make(map[types.ID]Menu),
	}
}

func (m *MemoryStore) PutProposal(p Proposal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proposals[p.ID] = p
}

func (m *MemoryStore) PutMenu(menu Menu) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.menus[menu.ID] = menu
}

func (m *MemoryStore) Proposal(_ context.Context, id types.ID) (*Proposal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.proposals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MemoryStore) Menu(_ context.Context, id types.ID) (*Menu, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	menu, ok := m.menus[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &menu, nil
}
