package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/cart"
	"github.com/ariefcatur/go-marketplace-orders/internal/catalog"
	"github.com/shopspring/decimal"
)

type fakeCarts struct {
	c   cart.Cart
	err error
}

func (f fakeCarts) Get(context.Context, string) (cart.Cart, error) { return f.c, f.err }

type fakeGateway struct {
	calls    int
	amount   int64
	currency string
	receipt  string
	err      error
}

func (g *fakeGateway) CreateOrder(_ context.Context, amountMinor int64, currency, receipt string) (ProviderOrder, error) {
	g.calls++
	g.amount, g.currency, g.receipt = amountMinor, currency, receipt
	if g.err != nil {
		return ProviderOrder{}, g.err
	}
	return ProviderOrder{ID: "order_X", AmountMinor: amountMinor, Currency: currency, Receipt: receipt, Status: "created"}, nil
}

type memIntents map[string]Intent

func (m memIntents) Save(_ context.Context, ref string, in Intent) error {
	m[ref] = in
	return nil
}

func (m memIntents) Load(_ context.Context, ref string) (Intent, error) {
	in, ok := m[ref]
	if !ok {
		return Intent{}, ErrNoIntent
	}
	return in, nil
}

func populatedCart() cart.Cart {
	return cart.Cart{BuyerID: "b1", Lines: []cart.Line{
		{ProductID: "A", Quantity: 2, Product: &catalog.Product{ID: "A", Price: decimal.RequireFromString("10.00")}},
		{ProductID: "B", Quantity: 1, Product: &catalog.Product{ID: "B", Price: decimal.RequireFromString("5.50")}},
	}}
}

func TestCreateProviderOrderUsesServerSideTotal(t *testing.T) {
	gw := &fakeGateway{}
	intents := memIntents{}
	svc := &Service{
		KeyID:   "rzp_test_key",
		Carts:   fakeCarts{c: populatedCart()},
		Gateway: gw,
		Intents: intents,
		Now:     func() time.Time { return time.UnixMilli(1700000000000) },
	}

	co, err := svc.CreateProviderOrder(context.Background(), "b1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if gw.amount != 2550 || gw.currency != DefaultCurrency {
		t.Fatalf("gateway got amount=%d currency=%s", gw.amount, gw.currency)
	}
	if gw.receipt != "rcpt_1700000000000" {
		t.Fatalf("receipt = %s", gw.receipt)
	}
	if !co.Amount.Equal(decimal.RequireFromString("25.50")) || co.KeyID != "rzp_test_key" {
		t.Fatalf("unexpected checkout: %+v", co)
	}
	if in := intents["order_X"]; in.BuyerID != "b1" || in.AmountMinor != 2550 {
		t.Fatalf("intent not stored: %+v", in)
	}
}

func TestCreateProviderOrderEmptyCart(t *testing.T) {
	gw := &fakeGateway{}
	svc := &Service{Carts: fakeCarts{c: cart.Cart{BuyerID: "b1"}}, Gateway: gw}

	_, err := svc.CreateProviderOrder(context.Background(), "b1")
	if !errors.Is(err, apperr.EmptyCart) {
		t.Fatalf("expected EmptyCart, got %v", err)
	}
	if gw.calls != 0 {
		t.Fatalf("gateway must not be called for an empty cart")
	}
}

func TestCreateProviderOrderGatewayFailure(t *testing.T) {
	svc := &Service{Carts: fakeCarts{c: populatedCart()}, Gateway: &fakeGateway{err: errors.New("dial tcp: timeout")}}

	_, err := svc.CreateProviderOrder(context.Background(), "b1")
	if !errors.Is(err, apperr.ErrExternalFailure) {
		t.Fatalf("expected ExternalFailure, got %v", err)
	}
}

func TestCheckIntent(t *testing.T) {
	store := memIntents{"order_X": {BuyerID: "b1", AmountMinor: 2500}}
	ctx := context.Background()

	in, found, err := CheckIntent(ctx, store, "order_X", "b1")
	if err != nil || !found || in.AmountMinor != 2500 {
		t.Fatalf("owner should pass with the intent: %+v found=%v err=%v", in, found, err)
	}
	if _, _, err := CheckIntent(ctx, store, "order_X", "b2"); !errors.Is(err, apperr.SignatureMismatch) {
		t.Fatalf("foreign buyer should be rejected, got %v", err)
	}
	if _, found, err := CheckIntent(ctx, store, "order_unknown", "b2"); err != nil || found {
		t.Fatalf("missing intent should pass unfound: found=%v err=%v", found, err)
	}
	if _, found, err := CheckIntent(ctx, nil, "order_X", "b2"); err != nil || found {
		t.Fatalf("nil store should pass unfound: found=%v err=%v", found, err)
	}
}

type fakeCreator struct {
	body map[string]interface{}
	err  error
	got  map[string]interface{}
}

func (f *fakeCreator) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	f.got = data
	return f.body, f.err
}

func TestRazorpayGatewayMapsResponse(t *testing.T) {
	fc := &fakeCreator{body: map[string]interface{}{"id": "order_R1", "amount": float64(2500), "status": "created"}}
	g := &RazorpayGateway{orders: fc}

	po, err := g.CreateOrder(context.Background(), 2500, "INR", "rcpt_1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if po.ID != "order_R1" || po.AmountMinor != 2500 || po.Status != "created" {
		t.Fatalf("unexpected provider order: %+v", po)
	}
	if fc.got["amount"] != int64(2500) || fc.got["currency"] != "INR" || fc.got["receipt"] != "rcpt_1" {
		t.Fatalf("unexpected request: %v", fc.got)
	}

	fc.body = map[string]interface{}{"error": "bad"}
	if _, err := g.CreateOrder(context.Background(), 1, "INR", "r"); !errors.Is(err, apperr.ErrExternalFailure) {
		t.Fatalf("expected ExternalFailure for response without id, got %v", err)
	}
}
