// README: Durable order store backed by PostgreSQL (registered orders only).
package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

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

// Put inserts the order or overwrites every mutable column of an existing one.
func (s *Store) Put(ctx context.Context, o *Order) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO orders (
			id, restaurant_id, status, status_version, wait_time,
			taxpayer_number, notes, service_type, proposal_ids, menu_ids,
			created_at, registered_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			status_version = EXCLUDED.status_version,
			wait_time = EXCLUDED.wait_time,
			taxpayer_number = EXCLUDED.taxpayer_number,
			notes = EXCLUDED.notes,
			service_type = EXCLUDED.service_type,
			proposal_ids = EXCLUDED.proposal_ids,
			menu_ids = EXCLUDED.menu_ids,
			registered_at = EXCLUDED.registered_at,
			completed_at = EXCLUDED.completed_at`,
		string(o.ID),
		string(o.RestaurantID),
		string(o.Status),
		o.StatusVersion,
		o.WaitTime,
		o.TaxpayerNumber,
		o.Notes,
		string(o.ServiceType),
		idStrings(o.Proposals),
		idStrings(o.Menus),
		o.CreatedAt,
		o.RegisteredAt,
		o.CompletedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, restaurant_id, status, status_version, wait_time,
		       taxpayer_number, notes, service_type, proposal_ids, menu_ids,
		       created_at, registered_at, completed_at
		FROM orders
		WHERE id = $1`, string(id),
	)

	var (
		o                       Order
		rid, status, svc        string
		taxpayer                sql.NullString
		proposals, menus        []string
		registered, completedAt sql.NullTime
	)
	err := row.Scan(
		&o.ID, &rid, &status, &o.StatusVersion, &o.WaitTime,
		&taxpayer, &o.Notes, &svc, &proposals, &menus,
		&o.CreatedAt, &registered, &completedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	o.RestaurantID = types.ID(rid)
	o.Status = Status(status)
	o.ServiceType = ServiceType(svc)
	o.Proposals = toIDs(proposals)
	o.Menus = toIDs(menus)
	if taxpayer.Valid {
		o.TaxpayerNumber = &taxpayer.String
	}
	o.RegisteredAt = toTimePtr(registered)
	o.CompletedAt = toTimePtr(completedAt)
	return &o, nil
}

// UpdateStatus applies a transition only if the row still has the expected status and version.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = $1,
		    status_version = status_version + 1,
		    registered_at = CASE WHEN $1 = 'queued' AND registered_at IS NULL THEN NOW() ELSE registered_at END,
		    completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END
		WHERE id = $2 AND status = $3 AND status_version = $4`,
		string(to),
		string(id),
		string(from),
		version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
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

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
