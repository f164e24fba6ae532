package memory

import (
	"context"
	"sort"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/cart"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

type carts struct{ view }

func (v carts) Get(_ context.Context, buyerID string) (cart.Cart, error) {
	c := cart.Cart{BuyerID: buyerID, Lines: []cart.Line{}}
	err := v.with(func(st *state) error {
		if cs, ok := st.carts[buyerID]; ok {
			c.Lines = append(c.Lines, cs.lines...)
			c.UpdatedAt = cs.updatedAt
		}
		return nil
	})
	return c, err
}

func (v carts) AddOrMerge(_ context.Context, buyerID, productID string, qty int) error {
	return v.with(func(st *state) error {
		cs, ok := st.carts[buyerID]
		if !ok {
			cs = &cartState{}
			st.carts[buyerID] = cs
		}
		cs.updatedAt = v.now()
		for i := range cs.lines {
			if cs.lines[i].ProductID == productID {
				cs.lines[i].Quantity += qty
				return nil
			}
		}
		cs.lines = append(cs.lines, cart.Line{ProductID: productID, Quantity: qty})
		return nil
	})
}

func (v carts) SetQuantity(_ context.Context, buyerID, productID string, qty int) error {
	return v.with(func(st *state) error {
		if cs, ok := st.carts[buyerID]; ok {
			for i := range cs.lines {
				if cs.lines[i].ProductID == productID {
					cs.lines[i].Quantity = qty
					cs.updatedAt = v.now()
					return nil
				}
			}
		}
		return apperr.NotFound("product not in cart")
	})
}

func (v carts) Remove(_ context.Context, buyerID, productID string) error {
	return v.with(func(st *state) error {
		cs, ok := st.carts[buyerID]
		if !ok {
			return nil
		}
		kept := cs.lines[:0]
		for _, l := range cs.lines {
			if l.ProductID != productID {
				kept = append(kept, l)
			}
		}
		cs.lines = kept
		cs.updatedAt = v.now()
		return nil
	})
}

func (v carts) Drain(_ context.Context, buyerID string) error {
	return v.with(func(st *state) error {
		if cs, ok := st.carts[buyerID]; ok {
			cs.lines = nil
			cs.updatedAt = v.now()
		}
		return nil
	})
}

type orderBook struct{ view }

func (v orderBook) Insert(_ context.Context, o *orders.Order) error {
	return v.with(func(st *state) error {
		if _, ok := st.orders[o.ID]; ok {
			return apperr.InvalidState("order %s already exists", o.ID)
		}
		if o.ProviderPaymentRef != "" {
			for _, other := range st.orders {
				if other.ProviderPaymentRef == o.ProviderPaymentRef {
					return apperr.InvalidState("payment already recorded for another order")
				}
			}
		}
		st.orders[o.ID] = o.Clone()
		st.seq[o.ID] = st.next
		st.next++
		return nil
	})
}

func (v orderBook) Get(_ context.Context, id string) (*orders.Order, error) {
	var out *orders.Order
	err := v.with(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return apperr.NotFound("order not found")
		}
		out = o.Clone()
		return nil
	})
	return out, err
}

func (v orderBook) Update(_ context.Context, o *orders.Order) error {
	return v.with(func(st *state) error {
		cur, ok := st.orders[o.ID]
		if !ok {
			return apperr.NotFound("order not found")
		}
		cur.Status = o.Status
		cur.PaymentStatus = o.PaymentStatus
		cur.CancelledBy = o.CancelledBy
		cur.UpdatedAt = o.UpdatedAt
		return nil
	})
}

func (v orderBook) FindByPaymentRef(_ context.Context, ref string) (*orders.Order, error) {
	var out *orders.Order
	err := v.with(func(st *state) error {
		for _, o := range st.orders {
			if ref != "" && o.ProviderPaymentRef == ref {
				out = o.Clone()
				return nil
			}
		}
		return apperr.NotFound("order not found")
	})
	return out, err
}

func (v orderBook) ListByBuyer(_ context.Context, buyerID string) ([]*orders.Order, error) {
	return v.list(func(o *orders.Order) bool { return o.BuyerID == buyerID })
}

func (v orderBook) ListByProducts(_ context.Context, productIDs []string) ([]*orders.Order, error) {
	want := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		want[id] = true
	}
	return v.list(func(o *orders.Order) bool {
		for _, it := range o.Items {
			if want[it.ProductID] {
				return true
			}
		}
		return false
	})
}

// list returns matching orders newest first.
func (v orderBook) list(match func(*orders.Order) bool) ([]*orders.Order, error) {
	out := []*orders.Order{}
	err := v.with(func(st *state) error {
		for _, o := range st.orders {
			if match(o) {
				out = append(out, o.Clone())
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].CreatedAt.After(out[j].CreatedAt)
			}
			return st.seq[out[i].ID] > st.seq[out[j].ID]
		})
		return nil
	})
	return out, err
}
