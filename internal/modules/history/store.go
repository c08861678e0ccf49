// README: Postgres archive of completed orders.
package history

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"brigade/internal/modules/order"
	"brigade/internal/types"
)

var ErrNotCompleted = errors.New("order is not completed")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Archive copies a completed order into order_history. Archiving twice is a no-op.
func (s *Store) Archive(ctx context.Context, o *order.Order) error {
	rec, err := recordFrom(o)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO order_history (
			order_id, restaurant_id, wait_time, taxpayer_number, notes,
			service_type, proposal_ids, menu_ids, registered_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (order_id) DO NOTHING`,
		string(rec.OrderID),
		string(rec.RestaurantID),
		rec.WaitTime,
		rec.TaxpayerNumber,
		rec.Notes,
		rec.ServiceType,
		idStrings(rec.Proposals),
		idStrings(rec.Menus),
		rec.RegisteredAt,
		rec.CompletedAt,
	)
	return err
}

// ListByRestaurant returns archived orders, most recently completed first.
func (s *Store) ListByRestaurant(ctx context.Context, restaurantID types.ID, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT order_id, restaurant_id, wait_time, taxpayer_number, notes,
		       service_type, proposal_ids, menu_ids, registered_at, completed_at
		FROM order_history
		WHERE restaurant_id = $1
		ORDER BY completed_at DESC
		LIMIT $2`, string(restaurantID), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec              Record
			oid, rid         string
			taxpayer         sql.NullString
			proposals, menus []string
			registered       sql.NullTime
		)
		if err := rows.Scan(&oid, &rid, &rec.WaitTime, &taxpayer, &rec.Notes,
			&rec.ServiceType, &proposals, &menus, &registered, &rec.CompletedAt); err != nil {
			return nil, err
		}
		rec.OrderID = types.ID(oid)
		rec.RestaurantID = types.ID(rid)
		if taxpayer.Valid {
			rec.TaxpayerNumber = &taxpayer.String
		}
		if registered.Valid {
			t := registered.Time
			rec.RegisteredAt = &t
		}
		rec.Proposals = toIDs(proposals)
		rec.Menus = toIDs(menus)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func recordFrom(o *order.Order) (Record, error) {
	if o.Status != order.StatusCompleted {
		return Record{}, ErrNotCompleted
	}
	completed := time.Now()
	if o.CompletedAt != nil {
		completed = *o.CompletedAt
	}
	rec := Record{
		OrderID:      o.ID,
		RestaurantID: o.RestaurantID,
		WaitTime:     o.WaitTime,
		Notes:        o.Notes,
		ServiceType:  string(o.ServiceType),
		Proposals:    append([]types.ID(nil), o.Proposals...),
		Menus:        append([]types.ID(nil), o.Menus...),
		RegisteredAt: o.RegisteredAt,
		CompletedAt:  completed,
	}
	if o.TaxpayerNumber != nil {
		v := *o.TaxpayerNumber
		rec.TaxpayerNumber = &v
	}
	return rec, nil
}

func idStrings(ids []types.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func toIDs(v []string) []types.ID {
	out := make([]types.ID, len(v))
	for i, s := range v {
		out[i] = types.ID(s)
	}
	return out
}
