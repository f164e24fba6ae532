package orders_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/auth"
	"github.com/ariefcatur/go-marketplace-orders/internal/cart"
	"github.com/ariefcatur/go-marketplace-orders/internal/catalog"
	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
	"github.com/ariefcatur/go-marketplace-orders/internal/memory"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/payment"
	"github.com/shopspring/decimal"
)

const secret = "test-secret"

type seqIDs struct{ n int }

func (s *seqIDs) NewID() string {
	s.n++
	return fmt.Sprintf("ord-%d", s.n)
}

type recorder struct {
	mu     sync.Mutex
	events []string
	fail   bool
}

func (r *recorder) Publish(_ context.Context, eventType, orderID string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType+":"+orderID)
	if r.fail {
		return errors.New("broker down")
	}
	return nil
}

type memIntents map[string]payment.Intent

func (m memIntents) Save(_ context.Context, ref string, in payment.Intent) error {
	m[ref] = in
	return nil
}

func (m memIntents) Load(_ context.Context, ref string) (payment.Intent, error) {
	in, ok := m[ref]
	if !ok {
		return payment.Intent{}, payment.ErrNoIntent
	}
	return in, nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string]orders.CachedStatus
	gets int
}

func (c *memCache) Get(_ context.Context, id string) (orders.CachedStatus, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	cs, ok := c.data[id]
	return cs, ok, nil
}

func (c *memCache) Put(_ context.Context, cs orders.CachedStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.data[cs.OrderID]; ok && cs.UpdatedAt.Before(cur.UpdatedAt) {
		return nil
	}
	c.data[cs.OrderID] = cs
	return nil
}

type fixture struct {
	store  *memory.Store
	carts  *cart.Service
	svc    *orders.Service
	events *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New(inventory.Policy{})
	st.PutProduct(catalog.Product{ID: "A", SellerID: "s1", Name: "Lamp", Price: decimal.RequireFromString("10.00"), Stock: 5})
	st.PutProduct(catalog.Product{ID: "B", SellerID: "s2", Name: "Mug", Price: decimal.RequireFromString("5.00"), Stock: 3})

	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := &recorder{}
	svc := &orders.Service{
		UoW:         st,
		IDs:         &seqIDs{},
		Verifier:    payment.Verifier{Secret: secret},
		Events:      rec,
		Transitions: orders.Transitions{Strict: true},
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	}
	return &fixture{store: st, carts: cart.NewService(st.Carts(), st.Catalog()), svc: svc, events: rec}
}

func (f *fixture) fill(t *testing.T, buyer string, lines map[string]int) {
	t.Helper()
	for pid, qty := range lines {
		if _, err := f.carts.AddOrMerge(context.Background(), buyer, pid, qty); err != nil {
			t.Fatalf("add %s: %v", pid, err)
		}
	}
}

func (f *fixture) stock(t *testing.T, pid string) int {
	t.Helper()
	n, ok := f.store.Stock(pid)
	if !ok {
		t.Fatalf("no product %s", pid)
	}
	return n
}

func (f *fixture) placeCOD(t *testing.T, buyer string) *orders.Order {
	t.Helper()
	f.fill(t, buyer, map[string]int{"A": 1, "B": 1})
	o, err := f.svc.PlaceCOD(context.Background(), buyer, "1 Main St")
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	return o
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("want %s, got nil", kind)
	}
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("want %s, got %s (%v)", kind, got, err)
	}
}

func TestPlaceCODSnapshotsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fill(t, "b1", map[string]int{"A": 2, "B": 1})

	o, err := f.svc.PlaceCOD(ctx, "b1", "1 Main St")
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if !o.TotalAmount.Equal(decimal.RequireFromString("25.00")) {
		t.Fatalf("total = %s, want 25.00", o.TotalAmount)
	}
	if o.Status != orders.StatusPending || o.PaymentStatus != orders.PaymentPending || o.PaymentMethod != orders.PaymentCOD {
		t.Fatalf("unexpected initial state: %+v", o)
	}
	if got := f.stock(t, "A"); got != 3 {
		t.Fatalf("stock A = %d, want 3", got)
	}
	if got := f.stock(t, "B"); got != 2 {
		t.Fatalf("stock B = %d, want 2", got)
	}
	c, _ := f.carts.Get(ctx, "b1")
	if !c.Empty() {
		t.Fatalf("cart not drained: %+v", c.Lines)
	}
	if len(f.events.events) != 1 || f.events.events[0] != orders.EventOrderPlaced+":"+o.ID {
		t.Fatalf("events = %v", f.events.events)
	}
}

func TestPlaceCODEmptyCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.PlaceCOD(context.Background(), "b1", "1 Main St")
	if !errors.Is(err, apperr.EmptyCart) {
		t.Fatalf("want empty cart, got %v", err)
	}
	if f.stock(t, "A") != 5 || f.stock(t, "B") != 3 {
		t.Fatalf("stock moved on failed placement")
	}
	if len(f.events.events) != 0 {
		t.Fatalf("events on failure: %v", f.events.events)
	}
}

func TestPlaceRequiresShippingAddress(t *testing.T) {
	f := newFixture(t)
	f.fill(t, "b1", map[string]int{"A": 1})
	_, err := f.svc.PlaceCOD(context.Background(), "b1", "  ")
	wantKind(t, err, apperr.KindValidation)
}

func TestPlaceRollsBackOnInsufficientStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fill(t, "b1", map[string]int{"A": 2, "B": 4})

	_, err := f.svc.PlaceCOD(ctx, "b1", "1 Main St")
	wantKind(t, err, apperr.KindInsufficientStock)

	if f.stock(t, "A") != 5 {
		t.Fatalf("stock A moved: %d", f.stock(t, "A"))
	}
	c, _ := f.carts.Get(ctx, "b1")
	if len(c.Lines) != 2 {
		t.Fatalf("cart drained on failure: %+v", c.Lines)
	}
	list, _ := f.svc.ListForBuyer(ctx, "b1")
	if len(list) != 0 {
		t.Fatalf("order persisted on failure: %d", len(list))
	}
}

func TestOrderPricesAreSnapshots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeCOD(t, "b1")

	f.store.PutProduct(catalog.Product{ID: "A", SellerID: "s1", Name: "Lamp", Price: decimal.RequireFromString("99.00"), Stock: 4})

	list, err := f.svc.ListForBuyer(ctx, "b1")
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %d", err, len(list))
	}
	if !list[0].TotalAmount.Equal(o.TotalAmount) || !list[0].ComputeTotal().Equal(o.TotalAmount) {
		t.Fatalf("total drifted: %s vs %s", list[0].TotalAmount, o.TotalAmount)
	}
}

func TestCancelTwiceIsInvalidState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeCOD(t, "b1")

	got, err := f.svc.CancelByBuyer(ctx, "b1", o.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != orders.StatusCancelled || got.CancelledBy != orders.CancelledByBuyer {
		t.Fatalf("unexpected cancel result: %+v", got)
	}

	_, err = f.svc.CancelByBuyer(ctx, "b1", o.ID)
	wantKind(t, err, apperr.KindInvalidState)
	_, err = f.svc.CancelBySeller(ctx, "s1", o.ID)
	wantKind(t, err, apperr.KindInvalidState)
	_, err = f.svc.MarkCODPaid(ctx, "s1", o.ID)
	wantKind(t, err, apperr.KindInvalidState)
}

func TestCancelBlockedOnceShipped(t *testing.T) {
	for _, target := range []string{"shipped", "delivered"} {
		t.Run(target, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			o := f.placeCOD(t, "b1")
			if _, err := f.svc.AdvanceStatus(ctx, "s1", o.ID, target); err != nil {
				t.Fatalf("advance: %v", err)
			}
			_, err := f.svc.CancelByBuyer(ctx, "b1", o.ID)
			wantKind(t, err, apperr.KindInvalidState)
			_, err = f.svc.CancelBySeller(ctx, "s2", o.ID)
			wantKind(t, err, apperr.KindInvalidState)
		})
	}
}

func TestSellerWithoutStakeIsUnauthorized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeCOD(t, "b1")

	_, err := f.svc.CancelBySeller(ctx, "s3", o.ID)
	wantKind(t, err, apperr.KindUnauthorized)
	_, err = f.svc.AdvanceStatus(ctx, "s3", o.ID, "processing")
	wantKind(t, err, apperr.KindUnauthorized)
	_, err = f.svc.MarkCODPaid(ctx, "s3", o.ID)
	wantKind(t, err, apperr.KindUnauthorized)

	got, err := f.svc.CancelBySeller(ctx, "s2", o.ID)
	if err != nil {
		t.Fatalf("seller with one product should cancel: %v", err)
	}
	if got.CancelledBy != orders.CancelledBySeller {
		t.Fatalf("cancelled_by = %q", got.CancelledBy)
	}
}

func TestBuyerCannotSeeForeignOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeCOD(t, "b1")

	_, err := f.svc.CancelByBuyer(ctx, "b2", o.ID)
	wantKind(t, err, apperr.KindNotFound)
	_, err = f.svc.CancelByBuyer(ctx, "b1", "missing")
	wantKind(t, err, apperr.KindNotFound)
	_, err = f.svc.Status(ctx, auth.Principal{UserID: "b2", Role: auth.RoleBuyer}, o.ID)
	wantKind(t, err, apperr.KindNotFound)
}

func TestMarkCODPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeCOD(t, "b1")

	got, err := f.svc.MarkCODPaid(ctx, "s1", o.ID)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if got.PaymentStatus != orders.PaymentPaid {
		t.Fatalf("payment status = %s", got.PaymentStatus)
	}
	_, err = f.svc.MarkCODPaid(ctx, "s1", o.ID)
	wantKind(t, err, apperr.KindInvalidState)

	_, err = f.svc.MarkCODPaid(ctx, "s1", "missing")
	wantKind(t, err, apperr.KindNotFound)
}

func TestMarkPaidRejectsOnlineOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fill(t, "b1", map[string]int{"A": 1})
	o, err := f.svc.PlaceOnline(ctx, "b1", "1 Main St", signed("order_1", "pay_1"))
	if err != nil {
		t.Fatalf("place online: %v", err)
	}
	_, err = f.svc.MarkCODPaid(ctx, "s1", o.ID)
	wantKind(t, err, apperr.KindValidation)
}

func signed(orderRef, paymentRef string) orders.OnlinePayment {
	return orders.OnlinePayment{
		ProviderOrderRef:   orderRef,
		ProviderPaymentRef: paymentRef,
		Signature:          payment.Sign(secret, orderRef, paymentRef),
	}
}

func TestPlaceOnlineRecordsPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fill(t, "b1", map[string]int{"A": 2, "B": 1})

	o, err := f.svc.PlaceOnline(ctx, "b1", "1 Main St", signed("order_1", "pay_1"))
	if err != nil {
		t.Fatalf("place online: %v", err)
	}
	if o.PaymentMethod != orders.PaymentOnline || o.PaymentStatus != orders.PaymentPaid {
		t.Fatalf("unexpected payment fields: %+v", o)
	}
	if o.ProviderOrderRef != "order_1" || o.ProviderPaymentRef != "pay_1" {
		t.Fatalf("provider refs not stored: %+v", o)
	}
	if !o.TotalAmount.Equal(decimal.RequireFromString("25")) {
		t.Fatalf("total = %s", o.TotalAmount)
	}
}

func TestPlaceOnlineBadSignatureTouchesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fill(t, "b1", map[string]int{"A": 2})

	pay := signed("order_1", "pay_1")
	pay.Signature = payment.Sign("wrong", "order_1", "pay_1")
	_, err := f.svc.PlaceOnline(ctx, "b1", "1 Main St", pay)
	if !errors.Is(err, apperr.SignatureMismatch) {
		t.Fatalf("want signature mismatch, got %v", err)
	}
	if f.stock(t, "A") != 5 {
		t.Fatalf("stock moved")
	}
	c, _ := f.carts.Get(ctx, "b1")
	if len(c.Lines) != 1 {
		t.Fatalf("cart changed: %+v", c.Lines)
	}
}

func TestPlaceOnlineReplayIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fill(t, "b1", map[string]int{"A": 2})

	first, err := f.svc.PlaceOnline(ctx, "b1", "1 Main St", signed("order_1", "pay_1"))
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	again, err := f.svc.PlaceOnline(ctx, "b1", "1 Main St", signed("order_1", "pay_1"))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("replay created a new order: %s vs %s", again.ID, first.ID)
	}
	if f.stock(t, "A") != 3 {
		t.Fatalf("stock decremented twice: %d", f.stock(t, "A"))
	}
	if len(f.events.events) != 1 {
		t.Fatalf("replay published again: %v", f.events.events)
	}

	_, err = f.svc.PlaceOnline(ctx, "b2", "2 Side St", signed("order_1", "pay_1"))
	if !errors.Is(err, apperr.SignatureMismatch) {
		t.Fatalf("foreign replay: want signature mismatch, got %v", err)
	}
}

func TestPlaceOnlineRejectsForeignIntent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.Intents = memIntents{"order_9": {BuyerID: "b2", AmountMinor: 1000, Currency: "INR"}}
	f.fill(t, "b1", map[string]int{"A": 1})

	_, err := f.svc.PlaceOnline(ctx, "b1", "1 Main St", signed("order_9", "pay_9"))
	if !errors.Is(err, apperr.SignatureMismatch) {
		t.Fatalf("want signature mismatch, got %v", err)
	}
	if f.stock(t, "A") != 5 {
		t.Fatalf("stock moved")
	}
}

func TestPlaceOnlineRequiresIntentAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.Intents = memIntents{"order_7": {BuyerID: "b1", AmountMinor: 1000, Currency: "INR"}}
	f.fill(t, "b1", map[string]int{"A": 1})
	// cart grows after the provider order was paid
	f.fill(t, "b1", map[string]int{"A": 4, "B": 3})

	_, err := f.svc.PlaceOnline(ctx, "b1", "1 Main St", signed("order_7", "pay_7"))
	if !errors.Is(err, apperr.AmountMismatch) {
		t.Fatalf("want amount mismatch, got %v", err)
	}
	if f.stock(t, "A") != 5 || f.stock(t, "B") != 3 {
		t.Fatalf("stock moved: A=%d B=%d", f.stock(t, "A"), f.stock(t, "B"))
	}
	c, _ := f.carts.Get(ctx, "b1")
	if len(c.Lines) != 2 {
		t.Fatalf("cart changed: %+v", c.Lines)
	}
	if len(f.events.events) != 0 {
		t.Fatalf("events published: %v", f.events.events)
	}

	f.svc.Intents = memIntents{"order_8": {BuyerID: "b1", AmountMinor: 6500, Currency: "INR"}}
	o, err := f.svc.PlaceOnline(ctx, "b1", "1 Main St", signed("order_8", "pay_8"))
	if err != nil {
		t.Fatalf("matching amount: %v", err)
	}
	if !o.TotalAmount.Equal(decimal.RequireFromString("65")) || o.PaymentStatus != orders.PaymentPaid {
		t.Fatalf("order = %+v", o)
	}
}

func TestRestockOnCancelPolicy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeCOD(t, "b1")
	if _, err := f.svc.CancelByBuyer(ctx, "b1", o.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if f.stock(t, "A") != 4 {
		t.Fatalf("default policy restocked: %d", f.stock(t, "A"))
	}

	f = newFixture(t)
	f.svc.RestockOnCancel = true
	o = f.placeCOD(t, "b1")
	if _, err := f.svc.CancelBySeller(ctx, "s1", o.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if f.stock(t, "A") != 5 || f.stock(t, "B") != 3 {
		t.Fatalf("restock missing: A=%d B=%d", f.stock(t, "A"), f.stock(t, "B"))
	}
}

func TestAdvanceStatusPolicies(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t)
	o := f.placeCOD(t, "b1")
	for _, bad := range []string{"cancelled", "bogus", ""} {
		_, err := f.svc.AdvanceStatus(ctx, "s1", o.ID, bad)
		wantKind(t, err, apperr.KindValidation)
	}
	if _, err := f.svc.AdvanceStatus(ctx, "s1", o.ID, "shipped"); err != nil {
		t.Fatalf("advance: %v", err)
	}
	_, err := f.svc.AdvanceStatus(ctx, "s1", o.ID, "processing")
	wantKind(t, err, apperr.KindInvalidState)

	f = newFixture(t)
	f.svc.Transitions = orders.Transitions{Strict: false}
	o = f.placeCOD(t, "b1")
	if _, err := f.svc.AdvanceStatus(ctx, "s1", o.ID, "delivered"); err != nil {
		t.Fatalf("advance: %v", err)
	}
	got, err := f.svc.AdvanceStatus(ctx, "s1", o.ID, "processing")
	if err != nil {
		t.Fatalf("permissive backward move: %v", err)
	}
	if got.Status != orders.StatusProcessing {
		t.Fatalf("status = %s", got.Status)
	}
	if _, err := f.svc.CancelBySeller(ctx, "s1", o.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err = f.svc.AdvanceStatus(ctx, "s1", o.ID, "pending")
	wantKind(t, err, apperr.KindInvalidState)
}

func TestListForSeller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fill(t, "b1", map[string]int{"A": 1})
	o1, err := f.svc.PlaceCOD(ctx, "b1", "x")
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	f.fill(t, "b2", map[string]int{"B": 1})
	o2, err := f.svc.PlaceCOD(ctx, "b2", "y")
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	s1, _ := f.svc.ListForSeller(ctx, "s1")
	if len(s1) != 1 || s1[0].ID != o1.ID {
		t.Fatalf("s1 sees %d orders", len(s1))
	}
	s2, _ := f.svc.ListForSeller(ctx, "s2")
	if len(s2) != 1 || s2[0].ID != o2.ID {
		t.Fatalf("s2 sees %d orders", len(s2))
	}
	none, err := f.svc.ListForSeller(ctx, "s9")
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("seller without products: %v %v", none, err)
	}
}

func TestStatusReadsThroughCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cache := &memCache{data: map[string]orders.CachedStatus{}}
	f.svc.Cache = cache
	o := f.placeCOD(t, "b1")

	if _, ok := cache.data[o.ID]; !ok {
		t.Fatalf("placement did not warm the cache")
	}
	v, err := f.svc.Status(ctx, auth.Principal{UserID: "b1", Role: auth.RoleBuyer}, o.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if v.Status != orders.StatusPending || v.OrderID != o.ID {
		t.Fatalf("view = %+v", v)
	}

	if _, err := f.svc.AdvanceStatus(ctx, "s2", o.ID, "processing"); err != nil {
		t.Fatalf("advance: %v", err)
	}
	v, err = f.svc.Status(ctx, auth.Principal{UserID: "s2", Role: auth.RoleSeller}, o.ID)
	if err != nil {
		t.Fatalf("seller status: %v", err)
	}
	if v.Status != orders.StatusProcessing {
		t.Fatalf("cache not refreshed: %+v", v)
	}
	_, err = f.svc.Status(ctx, auth.Principal{UserID: "s3", Role: auth.RoleSeller}, o.ID)
	wantKind(t, err, apperr.KindNotFound)

	delete(cache.data, o.ID)
	if _, err := f.svc.Status(ctx, auth.Principal{UserID: "b1", Role: auth.RoleBuyer}, o.ID); err != nil {
		t.Fatalf("status on miss: %v", err)
	}
	if _, ok := cache.data[o.ID]; !ok {
		t.Fatalf("miss did not refill the cache")
	}
}

func TestPublishFailureKeepsCommittedOrder(t *testing.T) {
	f := newFixture(t)
	f.events.fail = true
	o := f.placeCOD(t, "b1")

	list, err := f.svc.ListForBuyer(context.Background(), "b1")
	if err != nil || len(list) != 1 || list[0].ID != o.ID {
		t.Fatalf("order lost after publish failure: %v %d", err, len(list))
	}
}
