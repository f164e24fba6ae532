// Package projection keeps the Redis order status cache in step with order
// events published by the API.
package projection

import (
	"context"
	"fmt"

	kafkax "github.com/ariefcatur/go-marketplace-orders/internal/kafka"
	"github.com/ariefcatur/go-marketplace-orders/internal/logging"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/redisx"
	"github.com/ariefcatur/go-marketplace-orders/internal/telemetry"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Projector struct {
	Redis       *redis.Client
	Cache       *StatusCache
	ServiceName string
	Metrics     *telemetry.Metrics
}

// Handle is installed as the consumer handler. Malformed messages are
// logged and skipped so they do not block the partition.
func (p *Projector) Handle(ctx context.Context, m kafkago.Message) (err error) {
	log := logging.FromContext(ctx).With(zap.String("topic", m.Topic), zap.Int64("offset", m.Offset))
	outcome := "applied"
	defer func() {
		if err != nil {
			outcome = "error"
		}
		if p.Metrics != nil {
			p.Metrics.EventsConsumed.WithLabelValues(m.Topic, outcome).Inc()
		}
	}()

	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		log.Warn("skipping undecodable message", zap.Error(err))
		outcome = "skipped"
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, p.ServiceName, env.EventID)
	if seen, err := redisx.Exists(ctx, p.Redis, dkey); err == nil && seen {
		outcome = "duplicate"
		return nil
	}

	if err := p.apply(ctx, env); err != nil {
		return err
	}
	if _, err := redisx.MarkOnce(ctx, p.Redis, dkey, redisx.TTLDedup); err != nil {
		log.Warn("dedup mark failed", zap.String("event_id", env.EventID), zap.Error(err))
	}
	log.Debug("event projected", zap.String("event_type", env.EventType), zap.String("order_id", env.CorrelationID))
	return nil
}

func (p *Projector) apply(ctx context.Context, env orders.Envelope) error {
	v, ok, err := orders.StatusFromEvent(env)
	if err != nil {
		logging.FromContext(ctx).Warn("skipping malformed payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	if !ok || v.OrderID == "" {
		return nil
	}

	var placed *orders.OrderPlacedPayload
	if env.EventType == orders.EventOrderPlaced {
		pl, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
		if err != nil {
			return nil
		}
		placed = &pl
	}

	return p.Cache.Update(ctx, v.OrderID, func(cur orders.CachedStatus, found bool) (orders.CachedStatus, bool) {
		return Merge(cur, found, v, placed)
	})
}

// Merge folds an event's view into the cached entry. Older views never
// overwrite newer ones. Without a cached entry only a placement can create
// one, since the other events do not say who may read the order.
func Merge(cur orders.CachedStatus, found bool, v orders.StatusView, placed *orders.OrderPlacedPayload) (orders.CachedStatus, bool) {
	if !found {
		if placed == nil {
			return cur, false
		}
		ids := make([]string, 0, len(placed.Items))
		for _, it := range placed.Items {
			ids = append(ids, it.ProductID)
		}
		return orders.CachedStatus{StatusView: v, BuyerID: placed.BuyerID, ProductIDs: ids}, true
	}
	if v.UpdatedAt.Before(cur.UpdatedAt) {
		return cur, false
	}
	if v.Status != "" {
		cur.Status = v.Status
	}
	if v.PaymentStatus != "" {
		cur.PaymentStatus = v.PaymentStatus
	}
	if v.CancelledBy != "" {
		cur.CancelledBy = v.CancelledBy
	}
	cur.UpdatedAt = v.UpdatedAt
	return cur, true
}
