// Package cart owns a buyer's mutable pre-order lines.
package cart

import (
	"context"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/catalog"
)

type Line struct {
	ProductID string           `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Product   *catalog.Product `json:"product,omitempty"`
}

type Cart struct {
	BuyerID   string    `json:"buyer_id"`
	Lines     []Line    `json:"items"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

func (c Cart) Empty() bool { return len(c.Lines) == 0 }

// Line returns the line for productID, if present.
func (c Cart) Line(productID string) (Line, bool) {
	for _, l := range c.Lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return Line{}, false
}

// ProductIDs lists the referenced products in line order.
func (c Cart) ProductIDs() []string {
	out := make([]string, 0, len(c.Lines))
	for _, l := range c.Lines {
		out = append(out, l.ProductID)
	}
	return out
}

// Repository persists carts. A buyer without a cart reads as an empty Cart.
type Repository interface {
	Get(ctx context.Context, buyerID string) (Cart, error)
	// AddOrMerge adds qty to the existing line or appends a new one,
	// creating the cart lazily.
	AddOrMerge(ctx context.Context, buyerID, productID string, qty int) error
	// SetQuantity overwrites an existing line. It fails with apperr.NotFound
	// when the line is absent.
	SetQuantity(ctx context.Context, buyerID, productID string, qty int) error
	// Remove deletes the line; absent lines are not an error.
	Remove(ctx context.Context, buyerID, productID string) error
	// Drain empties the cart.
	Drain(ctx context.Context, buyerID string) error
}
