// README: Ephemeral per-restaurant staging area for orders still being assembled.
package order

import (
	"sync"
	"time"

	"brigade/internal/types"
)

// Pending owns orders until they are registered; nothing here is persisted.
type Pending struct {
	mu     sync.Mutex
	orders map[types.ID]map[types.ID]*Order
	newID  func() types.ID
}

func NewPending() *Pending {
	return &Pending{
		orders: make(map[types.ID]map[types.ID]*Order),
		newID:  types.NewID,
	}
}

func (p *Pending) Create(restaurantID types.ID) types.ID {
	p.mu.Lock()
	defer p.mu.Unlock()

	o := &Order{
		ID:           p.newID(),
		RestaurantID: restaurantID,
		Status:       StatusPending,
		CreatedAt:    time.Now(),
	}
	bucket, ok := p.orders[restaurantID]
	if !ok {
		bucket = make(map[types.ID]*Order)
		p.orders[restaurantID] = bucket
	}
	bucket[o.ID] = o
	return o.ID
}

func (p *Pending) Cancel(orderID, restaurantID types.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.orders[restaurantID], orderID)
}

// Get returns a copy; callers mutate through Update.
func (p *Pending) Get(orderID, restaurantID types.ID) (*Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[restaurantID][orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return o.Clone(), nil
}

func (p *Pending) Update(orderID, restaurantID types.ID, fn func(o *Order) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[restaurantID][orderID]
	if !ok {
		return ErrNotFound
	}
	return fn(o)
}

// Take removes the order from staging and hands ownership to the caller.
func (p *Pending) Take(orderID, restaurantID types.ID) (*Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[restaurantID][orderID]
	if !ok {
		return nil, ErrNotFound
	}
	delete(p.orders[restaurantID], orderID)
	return o, nil
}

// Restore puts back an order whose registration failed after Take.
func (p *Pending) Restore(o *Order) {
	p.mu.Lock()
	defer p.mu.Unlock()
	bucket, ok := p.orders[o.RestaurantID]
	if !ok {
		bucket = make(map[types.ID]*Order)
		p.orders[o.RestaurantID] = bucket
	}
	bucket[o.ID] = o
}
