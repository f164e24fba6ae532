package postgres

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-marketplace-orders/internal/cart"
	"github.com/ariefcatur/go-marketplace-orders/internal/catalog"
	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/jackc/pgx/v5"
)

// Store is the Postgres-backed storage. Outside Do its repositories run on
// the pool; inside Do they share one transaction.
type Store struct {
	db     Pool
	policy inventory.Policy
}

func NewStore(db Pool, policy inventory.Policy) *Store {
	return &Store{db: db, policy: policy}
}

// Do runs fn in a transaction and commits only if fn succeeds.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, scope{q: tx, policy: s.policy, lock: true}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) Carts() cart.Repository      { return cartRepo{q: s.db} }
func (s *Store) Catalog() catalog.Reader     { return catalogRepo{q: s.db} }
func (s *Store) Inventory() inventory.Ledger { return ledger{q: s.db, policy: s.policy} }

type scope struct {
	q      DBTX
	policy inventory.Policy
	lock   bool
}

func (t scope) Carts() cart.Repository      { return cartRepo{q: t.q, lock: t.lock} }
func (t scope) Catalog() catalog.Reader     { return catalogRepo{q: t.q} }
func (t scope) Inventory() inventory.Ledger { return ledger{q: t.q, policy: t.policy} }
func (t scope) Orders() orders.Repository   { return orderRepo{q: t.q, lock: t.lock} }
