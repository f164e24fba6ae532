package orders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventOrderCancelled     = "OrderCancelled"
	EventOrderPaymentMarked = "OrderPaymentMarked"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the constants above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g. "marketplace-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payloads per event ----

type OrderPlacedPayload struct {
	OrderID       string          `json:"order_id"`
	BuyerID       string          `json:"buyer_id"`
	Items         []Item          `json:"items"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

type OrderStatusChangedPayload struct {
	OrderID   string    `json:"order_id"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	ChangedBy string    `json:"changed_by"`
	At        time.Time `json:"at"`
}

type OrderCancelledPayload struct {
	OrderID     string      `json:"order_id"`
	From        Status      `json:"from"`
	CancelledBy CancelledBy `json:"cancelled_by"`
	Restocked   bool        `json:"restocked"`
	At          time.Time   `json:"at"`
}

type OrderPaymentMarkedPayload struct {
	OrderID       string        `json:"order_id"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	MarkedBy      string        `json:"marked_by"`
	At            time.Time     `json:"at"`
}

// StatusFromEvent extracts the status view an event implies, for
// consumers that only keep the latest status. UpdatedAt is the order's own
// timestamp, so views can be ordered across topics. Fields an event does
// not carry are left zero.
func StatusFromEvent(env Envelope) (StatusView, bool, error) {
	v := StatusView{OrderID: env.CorrelationID, UpdatedAt: env.OccurredAt}
	switch env.EventType {
	case EventOrderPlaced:
		var p OrderPlacedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return v, false, err
		}
		v.OrderID, v.Status, v.PaymentStatus, v.UpdatedAt = p.OrderID, p.Status, p.PaymentStatus, p.CreatedAt
	case EventOrderStatusChanged:
		var p OrderStatusChangedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return v, false, err
		}
		v.OrderID, v.Status, v.UpdatedAt = p.OrderID, p.To, p.At
	case EventOrderCancelled:
		var p OrderCancelledPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return v, false, err
		}
		v.OrderID, v.Status, v.CancelledBy, v.UpdatedAt = p.OrderID, StatusCancelled, p.CancelledBy, p.At
	case EventOrderPaymentMarked:
		var p OrderPaymentMarkedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return v, false, err
		}
		v.OrderID, v.PaymentStatus, v.UpdatedAt = p.OrderID, p.PaymentStatus, p.At
	default:
		return v, false, nil
	}
	return v, true, nil
}

// Publisher emits domain events after a transaction commits.
type Publisher interface {
	Publish(ctx context.Context, eventType, orderID string, payload any) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, string, any) error { return nil }
