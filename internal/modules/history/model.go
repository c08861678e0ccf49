// README: Kitchen events and archived order records.
package history

import (
	"time"

	"brigade/internal/types"
)

type EventType string

const (
	EventQueued    EventType = "order.queued"
	EventStarted   EventType = "order.started"
	EventDelayed   EventType = "order.delayed"
	EventHalted    EventType = "order.halted"
	EventCompleted EventType = "order.completed"
)

// Event is published on every kitchen transition of a registered order.
type Event struct {
	Type         EventType `json:"type"`
	OrderID      types.ID  `json:"order_id"`
	RestaurantID types.ID  `json:"restaurant_id"`
	WaitTime     float64   `json:"wait_time"`
	Missing      []string  `json:"missing_ingredients,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	At           time.Time `json:"at"`
}

// Record is one completed order as kept in order_history.
type Record struct {
	OrderID        types.ID   `json:"order_id"`
	RestaurantID   types.ID   `json:"restaurant_id"`
	WaitTime       float64    `json:"wait_time"`
	TaxpayerNumber *string    `json:"taxpayer_number,omitempty"`
	Notes          string     `json:"notes"`
	ServiceType    string     `json:"service_type"`
	Proposals      []types.ID `json:"proposal_ids"`
	Menus          []types.ID `json:"menu_ids"`
	RegisteredAt   *time.Time `json:"registered_at,omitempty"`
	CompletedAt    time.Time  `json:"completed_at"`
}
