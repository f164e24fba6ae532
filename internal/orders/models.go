package orders

import (
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/pricing"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "cod"
	PaymentOnline PaymentMethod = "online"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type CancelledBy string

const (
	CancelledByNone   CancelledBy = ""
	CancelledByBuyer  CancelledBy = "buyer"
	CancelledBySeller CancelledBy = "seller"
)

// Item is a priced order line. It is never mutated after the order is
// created, so later catalog price changes do not affect it.
type Item struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (it Item) Subtotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

type Order struct {
	ID                 string          `json:"id"`
	BuyerID            string          `json:"buyer_id"`
	Items              []Item          `json:"items"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	PaymentMethod      PaymentMethod   `json:"payment_method"`
	PaymentStatus      PaymentStatus   `json:"payment_status"`
	Status             Status          `json:"status"`
	CancelledBy        CancelledBy     `json:"cancelled_by,omitempty"`
	ShippingAddress    string          `json:"shipping_address"`
	ProviderOrderRef   string          `json:"provider_order_ref,omitempty"`
	ProviderPaymentRef string          `json:"provider_payment_ref,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// New builds an order from a pricing quote. Status and payment status start
// at their initial values for the given method.
func New(id, buyerID string, q pricing.Quote, method PaymentMethod, shippingAddress string, now time.Time) *Order {
	items := make([]Item, 0, len(q.Lines))
	for _, l := range q.Lines {
		items = append(items, Item{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	o := &Order{
		ID:              id,
		BuyerID:         buyerID,
		Items:           items,
		PaymentMethod:   method,
		PaymentStatus:   PaymentPending,
		Status:          StatusPending,
		ShippingAddress: shippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	o.TotalAmount = o.ComputeTotal()
	return o
}

// ComputeTotal is Σ quantity × unit price over the items.
func (o *Order) ComputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}

func (o *Order) ProductIDs() []string {
	out := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		out = append(out, it.ProductID)
	}
	return out
}

// Clone returns a deep copy.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]Item(nil), o.Items...)
	return &c
}

// StatusView is the small projection served from the status cache.
type StatusView struct {
	OrderID       string        `json:"order_id"`
	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	CancelledBy   CancelledBy   `json:"cancelled_by,omitempty"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (o *Order) View() StatusView {
	return StatusView{
		OrderID:       o.ID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		CancelledBy:   o.CancelledBy,
		UpdatedAt:     o.UpdatedAt,
	}
}
