// README: Order service: pending-order mutators and derived summaries (total, allergens).
package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"brigade/internal/modules/catalog"
	"brigade/internal/types"
)

var (
	ErrNotFound         = errors.New("order not found")
	ErrInvalidReference = errors.New("invalid reference")
	ErrInvalidState     = errors.New("invalid state transition")
	ErrConflict         = errors.New("order state conflict")
	ErrBadRequest       = errors.New("bad request")
)

type Catalog interface {
	Proposal(ctx context.Context, id types.ID) (*catalog.Proposal, error)
	Menu(ctx context.Context, id types.ID) (*catalog.Menu, error)
}

type Service struct {
	pending *Pending
	catalog Catalog
}

func NewService(pending *Pending, catalog Catalog) *Service {
	return &Service{pending: pending, catalog: catalog}
}

type ItemKind string

const (
	ItemProposal ItemKind = "proposal"
	ItemMenu     ItemKind = "menu"
)

type AddItemCommand struct {
	OrderID      types.ID
	RestaurantID types.ID
	Kind         ItemKind
	ItemID       types.ID
}

type NoteCommand struct {
	OrderID      types.ID
	RestaurantID types.ID
	Note         string
}

type TaxpayerCommand struct {
	OrderID      types.ID
	RestaurantID types.ID
	Number       string
}

type ServiceTypeCommand struct {
	OrderID      types.ID
	RestaurantID types.ID
	ServiceType  string
}

type Summary struct {
	OrderID   types.ID
	Total     types.Money
	Allergens []string
	Items     int
}

func (s *Service) Create(restaurantID types.ID) (types.ID, error) {
	if restaurantID == "" {
		return "", ErrBadRequest
	}
	return s.pending.Create(restaurantID), nil
}

func (s *Service) Cancel(orderID, restaurantID types.ID) {
	s.pending.Cancel(orderID, restaurantID)
}

func (s *Service) Get(orderID, restaurantID types.ID) (*Order, error) {
	return s.pending.Get(orderID, restaurantID)
}

func (s *Service) AppendNote(cmd NoteCommand) error {
	return s.pending.Update(cmd.OrderID, cmd.RestaurantID, func(o *Order) error {
		o.AppendNote(cmd.Note)
		return nil
	})
}

func (s *Service) SetTaxpayerNumber(cmd TaxpayerCommand) error {
	number := strings.TrimSpace(cmd.Number)
	return s.pending.Update(cmd.OrderID, cmd.RestaurantID, func(o *Order) error {
		if number == "" {
			o.TaxpayerNumber = nil
			return nil
		}
		o.TaxpayerNumber = &number
		return nil
	})
}

func (s *Service) SetServiceType(cmd ServiceTypeCommand) error {
	st, ok := ParseServiceType(cmd.ServiceType)
	if !ok {
		return ErrBadRequest
	}
	return s.pending.Update(cmd.OrderID, cmd.RestaurantID, func(o *Order) error {
		o.ServiceType = st
		return nil
	})
}

// AddItem appends a proposal or menu code after checking it exists in the catalog.
func (s *Service) AddItem(ctx context.Context, cmd AddItemCommand) error {
	if cmd.ItemID == "" {
		return ErrBadRequest
	}
	if _, err := s.pending.Get(cmd.OrderID, cmd.RestaurantID); err != nil {
		return err
	}
	var err error
	switch cmd.Kind {
	case ItemProposal:
		_, err = s.catalog.Proposal(ctx, cmd.ItemID)
	case ItemMenu:
		_, err = s.catalog.Menu(ctx, cmd.ItemID)
	default:
		return ErrBadRequest
	}
	if errors.Is(err, catalog.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", ErrInvalidReference, cmd.Kind, cmd.ItemID)
	}
	if err != nil {
		return err
	}
	return s.pending.Update(cmd.OrderID, cmd.RestaurantID, func(o *Order) error {
		if cmd.Kind == ItemProposal {
			o.Proposals = append(o.Proposals, cmd.ItemID)
		} else {
			o.Menus = append(o.Menus, cmd.ItemID)
		}
		return nil
	})
}

// Summarize derives the total price and the allergen set of any order.
func (s *Service) Summarize(ctx context.Context, o *Order) (Summary, error) {
	sum := Summary{OrderID: o.ID, Total: types.Zero(), Items: o.ItemCount()}
	allergens := make(map[string]struct{})
	addAllergens := func(p *catalog.Proposal) {
		for _, ing := range p.Ingredients {
			for _, a := range ing.Allergens {
				allergens[strings.ToLower(a)] = struct{}{}
			}
		}
	}

	for _, id := range o.Proposals {
		p, err := s.catalog.Proposal(ctx, id)
		if err != nil {
			return Summary{}, fmt.Errorf("proposal %s: %w", id, err)
		}
		sum.Total = sum.Total.Add(p.Price)
		addAllergens(p)
	}
	for _, id := range o.Menus {
		m, err := s.catalog.Menu(ctx, id)
		if err != nil {
			return Summary{}, fmt.Errorf("menu %s: %w", id, err)
		}
		sum.Total = sum.Total.Add(m.Price)
		for _, pid := range m.Proposals {
			p, err := s.catalog.Proposal(ctx, pid)
			if err != nil {
				return Summary{}, fmt.Errorf("menu %s proposal %s: %w", id, pid, err)
			}
			addAllergens(p)
		}
	}

	sum.Allergens = make([]string, 0, len(allergens))
	for a := range allergens {
		sum.Allergens = append(sum.Allergens, a)
	}
	sort.Strings(sum.Allergens)
	return sum, nil
}
