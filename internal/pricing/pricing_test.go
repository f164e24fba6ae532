package pricing

import (
	"errors"
	"testing"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/cart"
	"github.com/ariefcatur/go-marketplace-orders/internal/catalog"
	"github.com/shopspring/decimal"
)

func product(id, price string) *catalog.Product {
	return &catalog.Product{ID: id, Price: decimal.RequireFromString(price)}
}

func TestSnapshotTotals(t *testing.T) {
	c := cart.Cart{BuyerID: "b1", Lines: []cart.Line{
		{ProductID: "A", Quantity: 2, Product: product("A", "10.00")},
		{ProductID: "B", Quantity: 1, Product: product("B", "5.00")},
	}}

	q, err := Snapshot(c)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !q.Total.Equal(decimal.RequireFromString("25.00")) {
		t.Fatalf("total = %s, want 25.00", q.Total)
	}
	if q.MinorUnits() != 2500 {
		t.Fatalf("minor units = %d, want 2500", q.MinorUnits())
	}
	if len(q.Lines) != 2 || !q.Lines[0].UnitPrice.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("unexpected lines: %+v", q.Lines)
	}
}

func TestSnapshotCapturesPriceAtCallTime(t *testing.T) {
	p := product("A", "3.30")
	c := cart.Cart{Lines: []cart.Line{{ProductID: "A", Quantity: 3, Product: p}}}

	q, err := Snapshot(c)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	p.Price = decimal.RequireFromString("99")

	if !q.Lines[0].UnitPrice.Equal(decimal.RequireFromString("3.30")) {
		t.Fatalf("captured price changed to %s", q.Lines[0].UnitPrice)
	}
	if !q.Total.Equal(decimal.RequireFromString("9.90")) {
		t.Fatalf("total = %s, want 9.90", q.Total)
	}
}

func TestSnapshotEmptyCart(t *testing.T) {
	_, err := Snapshot(cart.Cart{BuyerID: "b1"})
	if !errors.Is(err, apperr.EmptyCart) {
		t.Fatalf("expected EmptyCart, got %v", err)
	}
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("EmptyCart must classify as validation")
	}
}

func TestSnapshotUnresolvedProduct(t *testing.T) {
	_, err := Snapshot(cart.Cart{Lines: []cart.Line{{ProductID: "gone", Quantity: 1}}})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestMinorUnitsRounding(t *testing.T) {
	q := Quote{Total: decimal.RequireFromString("10.005")}
	if q.MinorUnits() != 1001 {
		t.Fatalf("minor units = %d, want 1001", q.MinorUnits())
	}
}
