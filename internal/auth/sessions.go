package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
)

// Authenticator resolves a bearer token to the caller it was issued for.
// Unknown or malformed tokens fail with apperr.KindUnauthenticated.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (Principal, error)
}

// RedisSessions reads sessions written by the identity service under
// session:{token}.
type RedisSessions struct {
	Redis *redis.Client
}

func (s *RedisSessions) Authenticate(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, apperr.Unauthenticated("missing credentials")
	}
	b, err := s.Redis.Get(ctx, fmt.Sprintf(redisx.KeySession, token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Principal{}, apperr.Unauthenticated("invalid or expired session")
	}
	if err != nil {
		return Principal{}, apperr.Internal("load session", err)
	}
	var p Principal
	if err := json.Unmarshal(b, &p); err != nil || p.UserID == "" || !p.Role.Valid() {
		return Principal{}, apperr.Unauthenticated("invalid or expired session")
	}
	return p, nil
}

// Issue stores a session for p. The API never calls it; it exists for
// seeding local environments and tests.
func (s *RedisSessions) Issue(ctx context.Context, token string, p Principal, ttl time.Duration) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.Redis.Set(ctx, fmt.Sprintf(redisx.KeySession, token), b, ttl).Err()
}
