// README: Catalog store backed by PostgreSQL (read-only lookups).
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"brigade/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Proposal(ctx context.Context, id types.ID) (*Proposal, error) {
	var (
		p        Proposal
		price    string
		currency string
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, name, price::text, currency, stages
		FROM proposals
		WHERE id = $1`, string(id),
	).Scan(&p.ID, &p.Name, &price, &currency, &p.Stages)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.Price, err = toMoney(price, currency); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT pi.ingredient, COALESCE(i.allergens, '{}')
		FROM proposal_ingredients pi
		LEFT JOIN ingredients i ON i.name = pi.ingredient
		WHERE pi.proposal_id = $1
		ORDER BY pi.position`, string(id),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ing Ingredient
		if err := rows.Scan(&ing.Name, &ing.Allergens); err != nil {
			return nil, err
		}
		p.Ingredients = append(p.Ingredients, ing)
	}
	return &p, rows.Err()
}

func (s *Store) Menu(ctx context.Context, id types.ID) (*Menu, error) {
	var (
		m         Menu
		price     string
		currency  string
		proposals []string
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, name, price::text, currency, proposal_ids
		FROM menus
		WHERE id = $1`, string(id),
	).Scan(&m.ID, &m.Name, &price, &currency, &proposals)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if m.Price, err = toMoney(price, currency); err != nil {
		return nil, err
	}
	m.Proposals = make([]types.ID, len(proposals))
	for i, p := range proposals {
		m.Proposals[i] = types.ID(p)
	}
	return &m, nil
}

func toMoney(amount, currency string) (types.Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return types.Money{}, fmt.Errorf("price %q: %w", amount, err)
	}
	if currency == "" {
		currency = types.DefaultCurrency
	}
	return types.Money{Amount: d, Currency: currency}, nil
}
