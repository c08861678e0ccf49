// README: Order aggregate and kitchen status definitions.
package order

import (
	"strings"
	"time"

	"brigade/internal/types"
)

type Status string

const (
	StatusPending       Status = "pending"
	StatusQueued        Status = "queued"
	StatusInPreparation Status = "in_preparation"
	StatusCompleted     Status = "completed"
	// StatusHalted marks an order whose preparation session was discarded; staff re-offer it by hand.
	StatusHalted Status = "halted"
)

type ServiceType string

const (
	ServiceUnset    ServiceType = ""
	ServiceTakeaway ServiceType = "takeaway"
	ServiceDineIn   ServiceType = "dine_in"
)

func ParseServiceType(v string) (ServiceType, bool) {
	switch ServiceType(strings.ToLower(strings.TrimSpace(v))) {
	case ServiceTakeaway:
		return ServiceTakeaway, true
	case ServiceDineIn, "dine-in":
		return ServiceDineIn, true
	}
	return ServiceUnset, false
}

// Order carries item references only; totals and allergens are derived from the catalog.
type Order struct {
	ID             types.ID
	RestaurantID   types.ID
	Status         Status
	StatusVersion  int
	WaitTime       float64
	TaxpayerNumber *string
	Notes          string
	ServiceType    ServiceType
	Proposals      []types.ID
	Menus          []types.ID
	CreatedAt      time.Time
	RegisteredAt   *time.Time
	CompletedAt    *time.Time
}

const noteSeparator = ";"

func (o *Order) AppendNote(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	if o.Notes == "" {
		o.Notes = note
		return
	}
	o.Notes += noteSeparator + note
}

// ItemCount counts standalone proposals and menus, repeats included.
func (o *Order) ItemCount() int {
	return len(o.Proposals) + len(o.Menus)
}

func (o *Order) Clone() *Order {
	cp := *o
	cp.Proposals = append([]types.ID(nil), o.Proposals...)
	cp.Menus = append([]types.ID(nil), o.Menus...)
	if o.TaxpayerNumber != nil {
		v := *o.TaxpayerNumber
		cp.TaxpayerNumber = &v
	}
	return &cp
}

// AllowedTransitions represents the kitchen flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusPending:       {StatusQueued},
	StatusQueued:        {StatusInPreparation, StatusQueued},
	StatusInPreparation: {StatusQueued, StatusCompleted, StatusHalted},
	StatusHalted:        {StatusQueued},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}
