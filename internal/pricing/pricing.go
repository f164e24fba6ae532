// Package pricing turns a populated cart into immutable priced lines.
package pricing

import (
	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/cart"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Line struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Quote struct {
	Lines []Line
	Total decimal.Decimal
}

// MinorUnits is the total in the smallest currency unit, rounded half away
// from zero.
func (q Quote) MinorUnits() int64 {
	return q.Total.Mul(hundred).Round(0).IntPart()
}

// Snapshot captures each line's current catalog price. It has no side
// effects; an empty cart fails with apperr.EmptyCart.
func Snapshot(c cart.Cart) (Quote, error) {
	if c.Empty() {
		return Quote{}, apperr.EmptyCart
	}
	q := Quote{Lines: make([]Line, 0, len(c.Lines)), Total: decimal.Zero}
	for _, l := range c.Lines {
		if l.Product == nil {
			return Quote{}, apperr.NotFound("product %s not found", l.ProductID)
		}
		if l.Quantity <= 0 {
			return Quote{}, apperr.Validation("invalid quantity for product %s", l.ProductID)
		}
		line := Line{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.Product.Price}
		q.Lines = append(q.Lines, line)
		q.Total = q.Total.Add(line.Subtotal())
	}
	return q, nil
}
