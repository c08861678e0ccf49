// README: Staff directory backed by PostgreSQL.
package staff

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"brigade/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) RestaurantExists(ctx context.Context, id types.ID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM restaurants WHERE id = $1)`, string(id)).Scan(&exists)
	return exists, err
}

func (s *Store) ListRestaurants(ctx context.Context) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM restaurants ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []types.ID
	for rows.Next() {
		var id types.ID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FindEmployeeByDuty returns the earliest-hired employee whose duty matches, ignoring case.
func (s *Store) FindEmployeeByDuty(ctx context.Context, restaurantID types.ID, duty string) (types.ID, bool, error) {
	var id types.ID
	err := s.db.QueryRow(ctx, `
		SELECT id FROM employees
		WHERE restaurant_id = $1 AND lower(duty) = lower($2)
		ORDER BY created_at, id
		LIMIT 1`, string(restaurantID), duty,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}
