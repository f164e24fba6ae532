package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/catalog"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	productColumns    = `id, seller_id, name, price::text, stock`
	sqlProductByID    = `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	sqlProductsByIDs  = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`
	sqlOwnedBy        = `SELECT id FROM products WHERE seller_id = $1 AND id = ANY($2) ORDER BY id`
	sqlSellerProducts = `SELECT id FROM products WHERE seller_id = $1 ORDER BY id`
)

type catalogRepo struct{ q DBTX }

func scanProduct(row pgx.Row) (catalog.Product, error) {
	var (
		p     catalog.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.SellerID, &p.Name, &price, &p.Stock); err != nil {
		return catalog.Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("parse price of %s: %w", p.ID, err)
	}
	p.Price = d
	return p, nil
}

func (r catalogRepo) Get(ctx context.Context, productID string) (catalog.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, sqlProductByID, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Product{}, apperr.NotFound("product not found")
	}
	if err != nil {
		return catalog.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (r catalogRepo) GetMany(ctx context.Context, productIDs []string) (map[string]catalog.Product, error) {
	out := make(map[string]catalog.Product, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	rows, err := r.q.Query(ctx, sqlProductsByIDs, productIDs)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r catalogRepo) OwnedBy(ctx context.Context, sellerID string, productIDs []string) ([]string, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	return r.ids(ctx, sqlOwnedBy, sellerID, productIDs)
}

func (r catalogRepo) IDsBySeller(ctx context.Context, sellerID string) ([]string, error) {
	return r.ids(ctx, sqlSellerProducts, sellerID)
}

func (r catalogRepo) ids(ctx context.Context, stmt string, args ...any) ([]string, error) {
	rows, err := r.q.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query product ids: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
