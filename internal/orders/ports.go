package orders

import (
	"context"

	"github.com/ariefcatur/go-marketplace-orders/internal/cart"
	"github.com/ariefcatur/go-marketplace-orders/internal/catalog"
	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
)

// Repository persists orders. Reads inside a transaction lock the row.
type Repository interface {
	Insert(ctx context.Context, o *Order) error
	// Get fails with apperr.NotFound when the order does not exist.
	Get(ctx context.Context, id string) (*Order, error)
	// Update writes status, payment status, cancelled_by and updated_at.
	Update(ctx context.Context, o *Order) error
	// FindByPaymentRef fails with apperr.NotFound when no order carries ref.
	FindByPaymentRef(ctx context.Context, ref string) (*Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]*Order, error)
	// ListByProducts returns orders with at least one item among productIDs.
	ListByProducts(ctx context.Context, productIDs []string) ([]*Order, error)
}

// Tx exposes the stores that take part in one unit of work.
type Tx interface {
	Carts() cart.Repository
	Catalog() catalog.Reader
	Inventory() inventory.Ledger
	Orders() Repository
}

// UnitOfWork runs fn atomically: every write made through tx commits
// together or not at all.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// CachedStatus is a status view plus what is needed to authorize a read
// without touching the database.
type CachedStatus struct {
	StatusView
	BuyerID    string   `json:"buyer_id"`
	ProductIDs []string `json:"product_ids"`
}

func (o *Order) Cached() CachedStatus {
	return CachedStatus{StatusView: o.View(), BuyerID: o.BuyerID, ProductIDs: o.ProductIDs()}
}

// StatusCache is a best-effort read-through cache of CachedStatus.
type StatusCache interface {
	Get(ctx context.Context, orderID string) (CachedStatus, bool, error)
	// Put stores s unless the cache already holds a view with a later
	// UpdatedAt, so out-of-order writers never roll an entry back.
	Put(ctx context.Context, s CachedStatus) error
}

type IDGenerator interface {
	NewID() string
}
