package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-marketplace-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
)

// Intent binds a provider order to the buyer and amount it was created for.
type Intent struct {
	BuyerID     string `json:"buyer_id"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
}

// ErrNoIntent is returned when no intent is stored for a provider order.
var ErrNoIntent = errors.New("payment intent not found")

type IntentStore interface {
	Save(ctx context.Context, providerOrderRef string, in Intent) error
	Load(ctx context.Context, providerOrderRef string) (Intent, error)
}

// RedisIntents keeps intents in Redis for redisx.TTLPaymentIntent.
type RedisIntents struct {
	Redis *redis.Client
}

func (r *RedisIntents) Save(ctx context.Context, providerOrderRef string, in Intent) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	key := fmt.Sprintf(redisx.KeyPaymentIntent, providerOrderRef)
	return r.Redis.Set(ctx, key, b, redisx.TTLPaymentIntent).Err()
}

func (r *RedisIntents) Load(ctx context.Context, providerOrderRef string) (Intent, error) {
	key := fmt.Sprintf(redisx.KeyPaymentIntent, providerOrderRef)
	b, err := r.Redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Intent{}, ErrNoIntent
	}
	if err != nil {
		return Intent{}, err
	}
	var in Intent
	if err := json.Unmarshal(b, &in); err != nil {
		return Intent{}, fmt.Errorf("decode intent: %w", err)
	}
	return in, nil
}
