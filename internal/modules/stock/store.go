// README: Stock ledger backed by one Redis hash per restaurant (field = ingredient, value = units).
package stock

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"brigade/internal/types"
)

const ledgerKeyPrefix = "stock:restaurant:%s"

var ErrNegativeQuantity = errors.New("stock quantity cannot be negative")

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

// Quantity reports the units on hand; ok is false when the ingredient was never stocked.
func (s *Store) Quantity(ctx context.Context, restaurantID types.ID, ingredient string) (int, bool, error) {
	n, err := s.redis.HGet(ctx, ledgerKey(restaurantID), ingredient).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

func (s *Store) SetQuantity(ctx context.Context, restaurantID types.ID, ingredient string, qty int) error {
	if qty < 0 {
		return ErrNegativeQuantity
	}
	return s.redis.HSet(ctx, ledgerKey(restaurantID), ingredient, qty).Err()
}

// Restock adds qty units to every listed ingredient in one round trip.
func (s *Store) Restock(ctx context.Context, restaurantID types.ID, ingredients []string, qty int) error {
	if len(ingredients) == 0 {
		return nil
	}
	pipe := s.redis.Pipeline()
	for _, ing := range ingredients {
		pipe.HIncrBy(ctx, ledgerKey(restaurantID), ing, int64(qty))
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) Snapshot(ctx context.Context, restaurantID types.ID) (map[string]int, error) {
	raw, err := s.redis.HGetAll(ctx, ledgerKey(restaurantID)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(raw))
	for k, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("ingredient %q: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}

func ledgerKey(restaurantID types.ID) string {
	return fmt.Sprintf(ledgerKeyPrefix, string(restaurantID))
}
