package payment

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	razorpay "github.com/razorpay/razorpay-go"
)

// ProviderOrder is the gateway's view of a payment order.
type ProviderOrder struct {
	ID          string `json:"id"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt"`
	Status      string `json:"status"`
}

// Gateway creates provider orders. Callers treat failures as retryable on
// their side; nothing here retries.
type Gateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (ProviderOrder, error)
}

// NewReceipt builds the receipt id sent with a provider order.
func NewReceipt(now time.Time) string {
	return "rcpt_" + strconv.FormatInt(now.UnixMilli(), 10)
}

type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayGateway adapts the Razorpay SDK to Gateway.
type RazorpayGateway struct {
	orders orderCreator
}

func NewRazorpayGateway(keyID, keySecret string) *RazorpayGateway {
	client := razorpay.NewClient(keyID, keySecret)
	return &RazorpayGateway{orders: client.Order}
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (ProviderOrder, error) {
	if err := ctx.Err(); err != nil {
		return ProviderOrder{}, apperr.External("payment gateway unavailable", err)
	}
	body, err := g.orders.Create(map[string]interface{}{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receipt,
	}, nil)
	if err != nil {
		return ProviderOrder{}, apperr.External("could not create payment order", err)
	}

	id, _ := body["id"].(string)
	if id == "" {
		return ProviderOrder{}, apperr.External("could not create payment order", fmt.Errorf("gateway response without id: %v", body))
	}
	po := ProviderOrder{ID: id, AmountMinor: amountMinor, Currency: currency, Receipt: receipt}
	if s, ok := body["status"].(string); ok {
		po.Status = s
	}
	// the SDK decodes JSON numbers as float64
	if a, ok := body["amount"].(float64); ok {
		po.AmountMinor = int64(a)
	}
	return po, nil
}
