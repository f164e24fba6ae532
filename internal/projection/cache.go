package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
)

// StatusCache stores orders.CachedStatus under redisx.KeyOrderStatus.
type StatusCache struct {
	Redis *redis.Client
}

func (c *StatusCache) Get(ctx context.Context, orderID string) (orders.CachedStatus, bool, error) {
	b, err := c.Redis.Get(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return orders.CachedStatus{}, false, nil
	}
	if err != nil {
		return orders.CachedStatus{}, false, err
	}
	var cs orders.CachedStatus
	if err := json.Unmarshal(b, &cs); err != nil {
		return orders.CachedStatus{}, false, fmt.Errorf("decode cached status: %w", err)
	}
	return cs, true, nil
}

// Put writes cs unless the cached entry is newer. It shares the WATCH
// guard with the projector, so API write-through and event projection
// agree on newest-wins.
func (c *StatusCache) Put(ctx context.Context, cs orders.CachedStatus) error {
	return c.Update(ctx, cs.OrderID, func(cur orders.CachedStatus, found bool) (orders.CachedStatus, bool) {
		if found && cs.UpdatedAt.Before(cur.UpdatedAt) {
			return cur, false
		}
		return cs, true
	})
}

const maxUpdateAttempts = 5

var ErrContention = errors.New("status cache: too much contention")

// Update applies fn to the cached entry under WATCH, retrying when another
// writer changed the key in between. fn returns write=false to leave the
// entry as it is.
func (c *StatusCache) Update(ctx context.Context, orderID string, fn func(cur orders.CachedStatus, found bool) (next orders.CachedStatus, write bool)) error {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	for i := 0; i < maxUpdateAttempts; i++ {
		err := c.Redis.Watch(ctx, func(tx *redis.Tx) error {
			var (
				cur   orders.CachedStatus
				found bool
			)
			b, err := tx.Get(ctx, key).Bytes()
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				return err
			default:
				if err := json.Unmarshal(b, &cur); err != nil {
					return fmt.Errorf("decode cached status: %w", err)
				}
				found = true
			}

			next, write := fn(cur, found)
			if !write {
				return nil
			}
			nb, err := json.Marshal(next)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, nb, redisx.TTLStatusCache)
				return nil
			})
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrContention
}
