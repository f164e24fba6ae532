package orders

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/auth"
	"github.com/ariefcatur/go-marketplace-orders/internal/cart"
	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
	"github.com/ariefcatur/go-marketplace-orders/internal/logging"
	"github.com/ariefcatur/go-marketplace-orders/internal/payment"
	"github.com/ariefcatur/go-marketplace-orders/internal/pricing"
	"github.com/ariefcatur/go-marketplace-orders/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	useCasePlaceCOD     = "order.place_cod"
	useCasePlaceOnline  = "order.place_online"
	useCaseAdvance      = "order.advance_status"
	useCaseCancelBuyer  = "order.cancel_by_buyer"
	useCaseCancelSeller = "order.cancel_by_seller"
	useCaseMarkPaid     = "order.mark_cod_paid"
	useCaseListBuyer    = "order.list_for_buyer"
	useCaseListSeller   = "order.list_for_seller"
	useCaseStatus       = "order.status"
)

// Service owns order placement and the order lifecycle.
type Service struct {
	UoW      UnitOfWork
	IDs      IDGenerator
	Verifier payment.Verifier
	Intents  payment.IntentStore
	Events   Publisher
	Cache    StatusCache
	Obs      *telemetry.Observer
	Now      func() time.Time

	Transitions     Transitions
	RestockOnCancel bool
}

type UUIDs struct{}

func (UUIDs) NewID() string { return uuid.NewString() }

// OnlinePayment is the gateway's proof that a payment went through.
type OnlinePayment struct {
	ProviderOrderRef   string
	ProviderPaymentRef string
	Signature          string
}

// PlaceCOD converts the buyer's cart into a cash-on-delivery order.
func (s *Service) PlaceCOD(ctx context.Context, buyerID, shippingAddress string) (_ *Order, err error) {
	ctx, run := s.Obs.Start(ctx, useCasePlaceCOD, "PlaceCODOrder", attribute.String("order.buyer_id", buyerID))
	defer func() { run.End(err) }()

	if err := validateAddress(shippingAddress); err != nil {
		return nil, err
	}
	o, _, err := s.place(ctx, buyerID, PaymentCOD, shippingAddress, nil, nil)
	if err != nil {
		return nil, err
	}
	run.Annotate("order.id", o.ID)
	s.afterCommit(ctx, EventOrderPlaced, o, placedPayload(o))
	return o, nil
}

// PlaceOnline verifies the gateway signature and converts the buyer's cart
// into a paid order. Replaying an already recorded payment returns the
// order it created.
func (s *Service) PlaceOnline(ctx context.Context, buyerID, shippingAddress string, pay OnlinePayment) (_ *Order, err error) {
	ctx, run := s.Obs.Start(ctx, useCasePlaceOnline, "PlaceOnlineOrder",
		attribute.String("order.buyer_id", buyerID),
		attribute.String("payment.provider_order_ref", pay.ProviderOrderRef),
	)
	defer func() { run.End(err) }()

	if err := s.Verifier.Verify(pay.ProviderOrderRef, pay.ProviderPaymentRef, pay.Signature); err != nil {
		return nil, err
	}
	intent, found, err := payment.CheckIntent(ctx, s.Intents, pay.ProviderOrderRef, buyerID)
	if err != nil {
		return nil, err
	}
	if err := validateAddress(shippingAddress); err != nil {
		return nil, err
	}

	var paid *payment.Intent
	if found {
		paid = &intent
	}
	o, replay, err := s.place(ctx, buyerID, PaymentOnline, shippingAddress, &pay, paid)
	if err != nil {
		return nil, err
	}
	run.Annotate("order.id", o.ID)
	if replay {
		run.Status("IDEMPOTENT_REPLAY")
		return o, nil
	}
	s.afterCommit(ctx, EventOrderPlaced, o, placedPayload(o))
	return o, nil
}

// place runs the checkout pipeline in one unit of work. When paid is set,
// the priced cart must match the amount the provider order was opened for.
func (s *Service) place(ctx context.Context, buyerID string, method PaymentMethod, address string, pay *OnlinePayment, paid *payment.Intent) (*Order, bool, error) {
	var (
		placed *Order
		replay bool
	)
	err := s.UoW.Do(ctx, func(ctx context.Context, tx Tx) error {
		if pay != nil {
			existing, err := tx.Orders().FindByPaymentRef(ctx, pay.ProviderPaymentRef)
			switch {
			case err == nil:
				if existing.BuyerID != buyerID {
					return apperr.SignatureMismatch
				}
				placed, replay = existing, true
				return nil
			case !errors.Is(err, apperr.ErrNotFound):
				return err
			}
		}

		c, err := tx.Carts().Get(ctx, buyerID)
		if err != nil {
			return err
		}
		c, err = cart.Populate(ctx, tx.Catalog(), c)
		if err != nil {
			return err
		}
		q, err := pricing.Snapshot(c)
		if err != nil {
			return err
		}
		if paid != nil && paid.AmountMinor != q.MinorUnits() {
			return apperr.AmountMismatch
		}
		if err := inventory.Decrement(ctx, tx.Inventory(), quoteLines(q)); err != nil {
			return err
		}

		o := New(s.newID(), buyerID, q, method, address, s.now())
		if pay != nil {
			o.PaymentStatus = PaymentPaid
			o.ProviderOrderRef = pay.ProviderOrderRef
			o.ProviderPaymentRef = pay.ProviderPaymentRef
		}
		if err := tx.Orders().Insert(ctx, o); err != nil {
			return err
		}
		if err := tx.Carts().Drain(ctx, buyerID); err != nil {
			return err
		}
		placed = o
		return nil
	})
	if err != nil {
		return nil, false, classify("place order", err)
	}
	return placed, replay, nil
}

// AdvanceStatus moves an order along fulfilment on behalf of a seller.
func (s *Service) AdvanceStatus(ctx context.Context, sellerID, orderID, target string) (_ *Order, err error) {
	ctx, run := s.Obs.Start(ctx, useCaseAdvance, "AdvanceOrderStatus",
		attribute.String("order.id", orderID),
		attribute.String("order.target_status", target),
	)
	defer func() { run.End(err) }()

	to, ok := ParseStatus(target)
	if !ok || !Advanceable(to) {
		return nil, apperr.Validation("invalid status %q", target)
	}

	var (
		updated *Order
		from    Status
	)
	err = s.UoW.Do(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		next, ok := s.Transitions.Next(o.Status, ActionAdvance, to)
		if !ok {
			return apperr.InvalidState("cannot move order from %s to %s", o.Status, to)
		}
		if err := requireSeller(ctx, tx, sellerID, o); err != nil {
			return err
		}
		from = o.Status
		o.Status = next
		o.UpdatedAt = s.now()
		if err := tx.Orders().Update(ctx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, classify("advance order status", err)
	}

	s.afterCommit(ctx, EventOrderStatusChanged, updated, OrderStatusChangedPayload{
		OrderID: updated.ID, From: from, To: updated.Status, ChangedBy: sellerID, At: updated.UpdatedAt,
	})
	return updated, nil
}

// CancelByBuyer cancels the caller's own order before it ships. Orders of
// other buyers read as not found.
func (s *Service) CancelByBuyer(ctx context.Context, buyerID, orderID string) (_ *Order, err error) {
	ctx, run := s.Obs.Start(ctx, useCaseCancelBuyer, "CancelOrderByBuyer", attribute.String("order.id", orderID))
	defer func() { run.End(err) }()

	return s.cancel(ctx, orderID, CancelledByBuyer, func(ctx context.Context, tx Tx, o *Order) error {
		if o.BuyerID != buyerID {
			return apperr.NotFound("order not found")
		}
		return nil
	})
}

// CancelBySeller cancels an order that contains at least one of the
// seller's products.
func (s *Service) CancelBySeller(ctx context.Context, sellerID, orderID string) (_ *Order, err error) {
	ctx, run := s.Obs.Start(ctx, useCaseCancelSeller, "CancelOrderBySeller", attribute.String("order.id", orderID))
	defer func() { run.End(err) }()

	return s.cancel(ctx, orderID, CancelledBySeller, func(ctx context.Context, tx Tx, o *Order) error {
		return requireSeller(ctx, tx, sellerID, o)
	})
}

func (s *Service) cancel(ctx context.Context, orderID string, by CancelledBy, authorize func(context.Context, Tx, *Order) error) (*Order, error) {
	var (
		updated   *Order
		from      Status
		restocked bool
	)
	err := s.UoW.Do(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		// buyers must not learn about foreign orders through state errors
		if by == CancelledByBuyer {
			if err := authorize(ctx, tx, o); err != nil {
				return err
			}
		}
		if _, ok := s.Transitions.Next(o.Status, ActionCancel, ""); !ok {
			return apperr.InvalidState("cannot cancel an order that is already %s", o.Status)
		}
		if by != CancelledByBuyer {
			if err := authorize(ctx, tx, o); err != nil {
				return err
			}
		}

		if s.RestockOnCancel {
			if err := inventory.Restock(ctx, tx.Inventory(), itemLines(o.Items)); err != nil {
				return err
			}
			restocked = true
		}
		from = o.Status
		o.Status = StatusCancelled
		o.CancelledBy = by
		o.UpdatedAt = s.now()
		if err := tx.Orders().Update(ctx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, classify("cancel order", err)
	}

	s.afterCommit(ctx, EventOrderCancelled, updated, OrderCancelledPayload{
		OrderID: updated.ID, From: from, CancelledBy: by, Restocked: restocked, At: updated.UpdatedAt,
	})
	return updated, nil
}

// MarkCODPaid records that cash was collected for a COD order.
func (s *Service) MarkCODPaid(ctx context.Context, sellerID, orderID string) (_ *Order, err error) {
	ctx, run := s.Obs.Start(ctx, useCaseMarkPaid, "MarkCODOrderPaid", attribute.String("order.id", orderID))
	defer func() { run.End(err) }()

	var updated *Order
	err = s.UoW.Do(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		if o.PaymentMethod != PaymentCOD {
			return apperr.Validation("only cash on delivery orders can be marked paid")
		}
		if o.PaymentStatus == PaymentPaid {
			return apperr.InvalidState("order is already paid")
		}
		if o.Status == StatusCancelled {
			return apperr.InvalidState("cannot mark a cancelled order as paid")
		}
		if err := requireSeller(ctx, tx, sellerID, o); err != nil {
			return err
		}
		o.PaymentStatus = PaymentPaid
		o.UpdatedAt = s.now()
		if err := tx.Orders().Update(ctx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, classify("mark order paid", err)
	}

	s.afterCommit(ctx, EventOrderPaymentMarked, updated, OrderPaymentMarkedPayload{
		OrderID: updated.ID, PaymentStatus: updated.PaymentStatus, MarkedBy: sellerID, At: updated.UpdatedAt,
	})
	return updated, nil
}

// ListForBuyer returns the buyer's orders, newest first.
func (s *Service) ListForBuyer(ctx context.Context, buyerID string) (_ []*Order, err error) {
	ctx, run := s.Obs.Start(ctx, useCaseListBuyer, "ListBuyerOrders")
	defer func() { run.End(err) }()

	out := []*Order{}
	err = s.UoW.Do(ctx, func(ctx context.Context, tx Tx) error {
		list, err := tx.Orders().ListByBuyer(ctx, buyerID)
		if err != nil {
			return err
		}
		out = append(out, list...)
		return nil
	})
	if err != nil {
		return nil, classify("list buyer orders", err)
	}
	return out, nil
}

// ListForSeller returns every order containing at least one of the
// seller's products, newest first.
func (s *Service) ListForSeller(ctx context.Context, sellerID string) (_ []*Order, err error) {
	ctx, run := s.Obs.Start(ctx, useCaseListSeller, "ListSellerOrders")
	defer func() { run.End(err) }()

	out := []*Order{}
	err = s.UoW.Do(ctx, func(ctx context.Context, tx Tx) error {
		ids, err := tx.Catalog().IDsBySeller(ctx, sellerID)
		if err != nil || len(ids) == 0 {
			return err
		}
		list, err := tx.Orders().ListByProducts(ctx, ids)
		if err != nil {
			return err
		}
		out = append(out, list...)
		return nil
	})
	if err != nil {
		return nil, classify("list seller orders", err)
	}
	return out, nil
}

// Status returns the latest status of an order the caller may see. The
// cache is consulted first; misses fall back to storage and refill it.
func (s *Service) Status(ctx context.Context, p auth.Principal, orderID string) (_ StatusView, err error) {
	ctx, run := s.Obs.Start(ctx, useCaseStatus, "GetOrderStatus", attribute.String("order.id", orderID))
	defer func() { run.End(err) }()

	if s.Cache != nil {
		cs, ok, cerr := s.Cache.Get(ctx, orderID)
		if cerr != nil {
			logging.FromContext(ctx).Warn("status cache read failed", zap.String("order_id", orderID), zap.Error(cerr))
		}
		if ok {
			err = s.UoW.Do(ctx, func(ctx context.Context, tx Tx) error {
				return canView(ctx, tx, p, cs)
			})
			if err != nil {
				return StatusView{}, classify("authorize order status", err)
			}
			run.Status("CACHE_HIT")
			return cs.StatusView, nil
		}
	}

	var cs CachedStatus
	err = s.UoW.Do(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		cs = o.Cached()
		return canView(ctx, tx, p, cs)
	})
	if err != nil {
		return StatusView{}, classify("get order status", err)
	}
	s.putCache(ctx, cs)
	return cs.StatusView, nil
}

func canView(ctx context.Context, tx Tx, p auth.Principal, cs CachedStatus) error {
	switch p.Role {
	case auth.RoleBuyer:
		if cs.BuyerID == p.UserID {
			return nil
		}
	case auth.RoleSeller:
		owned, err := tx.Catalog().OwnedBy(ctx, p.UserID, cs.ProductIDs)
		if err != nil {
			return err
		}
		if len(owned) > 0 {
			return nil
		}
	}
	return apperr.NotFound("order not found")
}

func requireSeller(ctx context.Context, tx Tx, sellerID string, o *Order) error {
	owned, err := tx.Catalog().OwnedBy(ctx, sellerID, o.ProductIDs())
	if err != nil {
		return err
	}
	if len(owned) == 0 {
		return apperr.Unauthorized("order has no products of this seller")
	}
	return nil
}

// afterCommit refreshes the status cache and publishes the event. Neither
// can fail the operation: the order is already committed.
func (s *Service) afterCommit(ctx context.Context, eventType string, o *Order, payload any) {
	s.putCache(ctx, o.Cached())
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, eventType, o.ID, payload); err != nil {
		logging.FromContext(ctx).Warn("event publish failed",
			zap.String("event_type", eventType),
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
}

func (s *Service) putCache(ctx context.Context, cs CachedStatus) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Put(ctx, cs); err != nil {
		logging.FromContext(ctx).Warn("status cache write failed", zap.String("order_id", cs.OrderID), zap.Error(err))
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.IDs != nil {
		return s.IDs.NewID()
	}
	return uuid.NewString()
}

func placedPayload(o *Order) OrderPlacedPayload {
	return OrderPlacedPayload{
		OrderID:       o.ID,
		BuyerID:       o.BuyerID,
		Items:         o.Items,
		TotalAmount:   o.TotalAmount,
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: o.PaymentStatus,
		Status:        o.Status,
		CreatedAt:     o.CreatedAt,
	}
}

func validateAddress(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return apperr.Validation("shipping address is required")
	}
	return nil
}

// quoteLines turns a quote into stock movements, sorted by product so
// concurrent placements lock rows in the same order.
func quoteLines(q pricing.Quote) []inventory.Line {
	out := make([]inventory.Line, 0, len(q.Lines))
	for _, l := range q.Lines {
		out = append(out, inventory.Line{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	sortLines(out)
	return out
}

func itemLines(items []Item) []inventory.Line {
	out := make([]inventory.Line, 0, len(items))
	for _, it := range items {
		out = append(out, inventory.Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	sortLines(out)
	return out
}

func sortLines(lines []inventory.Line) {
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
}

func classify(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Internal(op, err)
}
