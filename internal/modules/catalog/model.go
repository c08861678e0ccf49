// README: Catalog definitions: proposals (preparable items), menus (fixed bundles), ingredients.
package catalog

import (
	"errors"

	"brigade/internal/types"
)

var ErrNotFound = errors.New("catalog entry not found")

type Ingredient struct {
	Name      string
	Allergens []string
}

// Proposal is a single preparable item. Stages are ordered preparation steps.
type Proposal struct {
	ID          types.ID
	Name        string
	Price       types.Money
	Ingredients []Ingredient
	Stages      []string
}

// Menu is a fixed bundle of proposals sold as one item.
type Menu struct {
	ID        types.ID
	Name      string
	Price     types.Money
	Proposals []types.ID
}

func (p *Proposal) IngredientNames() []string {
	names := make([]string, len(p.Ingredients))
	for i, ing := range p.Ingredients {
		names[i] = ing.Name
	}
	return names
}

func (m *Menu) Contains(proposalID types.ID) bool {
	for _, id := range m.Proposals {
		if id == proposalID {
			return true
		}
	}
	return false
}
