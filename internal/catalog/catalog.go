// Package catalog describes what the core needs from product storage:
// price, stock and owning seller per product.
package catalog

import (
	"context"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID       string          `json:"id"`
	SellerID string          `json:"seller_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
}

// Reader resolves products. Missing ids are simply absent from the
// returned map; Get reports apperr.NotFound.
type Reader interface {
	Get(ctx context.Context, productID string) (Product, error)
	GetMany(ctx context.Context, productIDs []string) (map[string]Product, error)
	// OwnedBy returns the subset of productIDs whose seller is sellerID.
	OwnedBy(ctx context.Context, sellerID string, productIDs []string) ([]string, error)
	// IDsBySeller lists every product the seller owns.
	IDsBySeller(ctx context.Context, sellerID string) ([]string, error)
}
