package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/cart"
)

const (
	sqlCartLines = `SELECT product_id, quantity, updated_at FROM cart_items
		WHERE buyer_id = $1 ORDER BY added_at, product_id`
	sqlCartUpsert = `INSERT INTO cart_items (buyer_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (buyer_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()`
	sqlCartSet    = `UPDATE cart_items SET quantity = $3, updated_at = now() WHERE buyer_id = $1 AND product_id = $2`
	sqlCartRemove = `DELETE FROM cart_items WHERE buyer_id = $1 AND product_id = $2`
	sqlCartDrain  = `DELETE FROM cart_items WHERE buyer_id = $1`
)

type cartRepo struct {
	q DBTX
	// lock makes Get take row locks, so two placements for the same buyer
	// cannot both consume one cart.
	lock bool
}

func (r cartRepo) Get(ctx context.Context, buyerID string) (cart.Cart, error) {
	stmt := sqlCartLines
	if r.lock {
		stmt += ` FOR UPDATE`
	}
	rows, err := r.q.Query(ctx, stmt, buyerID)
	if err != nil {
		return cart.Cart{}, fmt.Errorf("query cart: %w", err)
	}
	defer rows.Close()

	c := cart.Cart{BuyerID: buyerID, Lines: []cart.Line{}}
	for rows.Next() {
		var (
			l  cart.Line
			at time.Time
		)
		if err := rows.Scan(&l.ProductID, &l.Quantity, &at); err != nil {
			return cart.Cart{}, fmt.Errorf("scan cart line: %w", err)
		}
		if at.After(c.UpdatedAt) {
			c.UpdatedAt = at
		}
		c.Lines = append(c.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return cart.Cart{}, fmt.Errorf("read cart: %w", err)
	}
	return c, nil
}

func (r cartRepo) AddOrMerge(ctx context.Context, buyerID, productID string, qty int) error {
	if _, err := r.q.Exec(ctx, sqlCartUpsert, buyerID, productID, qty); err != nil {
		return fmt.Errorf("upsert cart line: %w", err)
	}
	return nil
}

func (r cartRepo) SetQuantity(ctx context.Context, buyerID, productID string, qty int) error {
	ct, err := r.q.Exec(ctx, sqlCartSet, buyerID, productID, qty)
	if err != nil {
		return fmt.Errorf("update cart line: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("product not in cart")
	}
	return nil
}

func (r cartRepo) Remove(ctx context.Context, buyerID, productID string) error {
	if _, err := r.q.Exec(ctx, sqlCartRemove, buyerID, productID); err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	return nil
}

func (r cartRepo) Drain(ctx context.Context, buyerID string) error {
	if _, err := r.q.Exec(ctx, sqlCartDrain, buyerID); err != nil {
		return fmt.Errorf("drain cart: %w", err)
	}
	return nil
}
