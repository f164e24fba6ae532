package postgres

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
)

const (
	sqlApplyDelta        = `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`
	sqlApplyDeltaFloored = sqlApplyDelta + ` AND stock + $2 >= 0`
	sqlProductExists     = `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`
)

// ledger applies each delta as one conditional UPDATE, so the row lock
// taken by Postgres serialises concurrent orders for the same product.
type ledger struct {
	q      DBTX
	policy inventory.Policy
}

func (l ledger) ApplyDelta(ctx context.Context, productID string, delta int) error {
	if delta == 0 {
		return nil
	}
	stmt := sqlApplyDeltaFloored
	if l.policy.AllowNegative || delta > 0 {
		stmt = sqlApplyDelta
	}
	ct, err := l.q.Exec(ctx, stmt, productID, delta)
	if err != nil {
		return fmt.Errorf("apply stock delta: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	// zero rows: either the product is gone or the floor blocked it
	var exists bool
	if err := l.q.QueryRow(ctx, sqlProductExists, productID).Scan(&exists); err != nil {
		return fmt.Errorf("check product: %w", err)
	}
	if !exists {
		return apperr.NotFound("product %s not found", productID)
	}
	return apperr.InsufficientStock(productID)
}
