// Package inventory holds the stock ledger contract. Stock is only ever
// changed through ApplyDelta.
package inventory

import (
	"context"
	"fmt"
)

// Ledger applies signed stock deltas. Implementations must apply each delta
// as one atomic storage operation so concurrent orders for the same product
// never lose updates.
//
// Unknown products fail with apperr.NotFound. When the ledger enforces a
// floor, a delta that would take stock below zero fails with
// apperr.InsufficientStock and leaves stock untouched.
type Ledger interface {
	ApplyDelta(ctx context.Context, productID string, delta int) error
}

// Policy controls the stock floor.
type Policy struct {
	// AllowNegative reproduces the unbounded decrement: stock may go below
	// zero under concurrent checkouts.
	AllowNegative bool
}

// Permits reports whether moving stock from current by delta is allowed.
func (p Policy) Permits(current, delta int) bool {
	if p.AllowNegative || delta >= 0 {
		return true
	}
	return current+delta >= 0
}

// Line is one product quantity to move.
type Line struct {
	ProductID string
	Quantity  int
}

// Decrement takes qty of every line out of stock, in order. The first
// failure aborts; callers run this inside a transaction so earlier deltas
// roll back with it.
func Decrement(ctx context.Context, l Ledger, lines []Line) error {
	for _, it := range lines {
		if err := l.ApplyDelta(ctx, it.ProductID, -it.Quantity); err != nil {
			return fmt.Errorf("decrement %s: %w", it.ProductID, err)
		}
	}
	return nil
}

// Restock puts qty of every line back.
func Restock(ctx context.Context, l Ledger, lines []Line) error {
	for _, it := range lines {
		if err := l.ApplyDelta(ctx, it.ProductID, it.Quantity); err != nil {
			return fmt.Errorf("restock %s: %w", it.ProductID, err)
		}
	}
	return nil
}
