// Package memory implements the storage ports in process memory. A unit of
// work operates on a copy of the state that replaces the live state only
// when it succeeds, so a failed placement leaves nothing behind.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/cart"
	"github.com/ariefcatur/go-marketplace-orders/internal/catalog"
	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

type cartState struct {
	lines     []cart.Line
	updatedAt time.Time
}

type state struct {
	products map[string]catalog.Product
	carts    map[string]*cartState
	orders   map[string]*orders.Order
	seq      map[string]int
	next     int
}

func newState() *state {
	return &state{
		products: map[string]catalog.Product{},
		carts:    map[string]*cartState{},
		orders:   map[string]*orders.Order{},
		seq:      map[string]int{},
	}
}

func (s *state) clone() *state {
	c := newState()
	c.next = s.next
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.carts {
		c.carts[k] = &cartState{lines: append([]cart.Line(nil), v.lines...), updatedAt: v.updatedAt}
	}
	for k, v := range s.orders {
		c.orders[k] = v.Clone()
	}
	for k, v := range s.seq {
		c.seq[k] = v
	}
	return c
}

// Store serialises units of work with a single mutex.
type Store struct {
	mu     sync.Mutex
	st     *state
	policy inventory.Policy
	Now    func() time.Time
}

func New(policy inventory.Policy) *Store {
	return &Store{st: newState(), policy: policy, Now: time.Now}
}

// PutProduct inserts or replaces a catalog product.
func (s *Store) PutProduct(p catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.products[p.ID] = p
}

// Stock reports the current stock of a product.
func (s *Store) Stock(productID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[productID]
	return p.Stock, ok
}

func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(ctx, view{s: s, st: work, inTx: true}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) Carts() cart.Repository      { return carts{view{s: s}} }
func (s *Store) Catalog() catalog.Reader     { return products{view{s: s}} }
func (s *Store) Inventory() inventory.Ledger { return ledger{view{s: s}} }

// view backs every repository with either the live state (taking the
// lock per call) or a unit-of-work copy (lock already held by Do).
type view struct {
	s    *Store
	st   *state
	inTx bool
}

func (v view) Carts() cart.Repository      { return carts{v} }
func (v view) Catalog() catalog.Reader     { return products{v} }
func (v view) Inventory() inventory.Ledger { return ledger{v} }
func (v view) Orders() orders.Repository   { return orderBook{v} }

func (v view) with(fn func(st *state) error) error {
	if v.inTx {
		return fn(v.st)
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return fn(v.s.st)
}

func (v view) now() time.Time {
	if v.s.Now != nil {
		return v.s.Now()
	}
	return time.Now()
}

type ledger struct{ view }

func (v ledger) ApplyDelta(_ context.Context, productID string, delta int) error {
	if delta == 0 {
		return nil
	}
	return v.with(func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return apperr.NotFound("product %s not found", productID)
		}
		if !v.s.policy.Permits(p.Stock, delta) {
			return apperr.InsufficientStock(productID)
		}
		p.Stock += delta
		st.products[productID] = p
		return nil
	})
}

type products struct{ view }

func (v products) Get(_ context.Context, productID string) (catalog.Product, error) {
	var p catalog.Product
	err := v.with(func(st *state) error {
		var ok bool
		if p, ok = st.products[productID]; !ok {
			return apperr.NotFound("product not found")
		}
		return nil
	})
	return p, err
}

func (v products) GetMany(_ context.Context, productIDs []string) (map[string]catalog.Product, error) {
	out := make(map[string]catalog.Product, len(productIDs))
	err := v.with(func(st *state) error {
		for _, id := range productIDs {
			if p, ok := st.products[id]; ok {
				out[id] = p
			}
		}
		return nil
	})
	return out, err
}

func (v products) OwnedBy(_ context.Context, sellerID string, productIDs []string) ([]string, error) {
	var out []string
	err := v.with(func(st *state) error {
		for _, id := range productIDs {
			if p, ok := st.products[id]; ok && p.SellerID == sellerID {
				out = append(out, id)
			}
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

func (v products) IDsBySeller(_ context.Context, sellerID string) ([]string, error) {
	var out []string
	err := v.with(func(st *state) error {
		for id, p := range st.products {
			if p.SellerID == sellerID {
				out = append(out, id)
			}
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}
