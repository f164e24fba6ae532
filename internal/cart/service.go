package cart

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/catalog"
)

type Service struct {
	Repo    Repository
	Catalog catalog.Reader
}

func NewService(repo Repository, products catalog.Reader) *Service {
	return &Service{Repo: repo, Catalog: products}
}

// Get returns the buyer's cart with product details resolved.
func (s *Service) Get(ctx context.Context, buyerID string) (Cart, error) {
	c, err := s.Repo.Get(ctx, buyerID)
	if err != nil {
		return Cart{}, wrapStore("get cart", err)
	}
	return Populate(ctx, s.Catalog, c)
}

func (s *Service) AddOrMerge(ctx context.Context, buyerID, productID string, qty int) (Cart, error) {
	if productID == "" {
		return Cart{}, apperr.Validation("product id is required")
	}
	if qty <= 0 {
		return Cart{}, apperr.Validation("quantity must be greater than zero")
	}
	if _, err := s.Catalog.Get(ctx, productID); err != nil {
		return Cart{}, wrapStore("resolve product", err)
	}
	if err := s.Repo.AddOrMerge(ctx, buyerID, productID, qty); err != nil {
		return Cart{}, wrapStore("add to cart", err)
	}
	return s.Get(ctx, buyerID)
}

// SetQuantity overwrites a line, or removes it when qty <= 0.
func (s *Service) SetQuantity(ctx context.Context, buyerID, productID string, qty int) (Cart, error) {
	if _, err := s.Catalog.Get(ctx, productID); err != nil {
		return Cart{}, wrapStore("resolve product", err)
	}
	c, err := s.Repo.Get(ctx, buyerID)
	if err != nil {
		return Cart{}, wrapStore("get cart", err)
	}
	if c.Empty() {
		return Cart{}, apperr.NotFound("cart not found")
	}
	if _, ok := c.Line(productID); !ok {
		return Cart{}, apperr.NotFound("product not in cart")
	}

	if qty <= 0 {
		err = s.Repo.Remove(ctx, buyerID, productID)
	} else {
		err = s.Repo.SetQuantity(ctx, buyerID, productID, qty)
	}
	if err != nil {
		return Cart{}, wrapStore("update cart", err)
	}
	return s.Get(ctx, buyerID)
}

func (s *Service) Remove(ctx context.Context, buyerID, productID string) (Cart, error) {
	if err := s.Repo.Remove(ctx, buyerID, productID); err != nil {
		return Cart{}, wrapStore("remove from cart", err)
	}
	return s.Get(ctx, buyerID)
}

// Populate attaches current product details to every line. Lines whose
// product no longer resolves keep a nil Product.
func Populate(ctx context.Context, products catalog.Reader, c Cart) (Cart, error) {
	if c.Empty() {
		if c.Lines == nil {
			c.Lines = []Line{}
		}
		return c, nil
	}
	found, err := products.GetMany(ctx, c.ProductIDs())
	if err != nil {
		return Cart{}, wrapStore("resolve products", err)
	}
	lines := make([]Line, len(c.Lines))
	for i, l := range c.Lines {
		if p, ok := found[l.ProductID]; ok {
			p := p
			l.Product = &p
		}
		lines[i] = l
	}
	c.Lines = lines
	return c, nil
}

func wrapStore(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Internal(op, err)
}
