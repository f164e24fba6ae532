package payment

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/cart"
	"github.com/ariefcatur/go-marketplace-orders/internal/pricing"
	"github.com/shopspring/decimal"
)

const DefaultCurrency = "INR"

type CartReader interface {
	Get(ctx context.Context, buyerID string) (cart.Cart, error)
}

// Service prepares provider-mediated checkouts.
type Service struct {
	KeyID    string
	Currency string
	Carts    CartReader
	Gateway  Gateway
	Intents  IntentStore
	Now      func() time.Time
}

// Checkout is what the buyer's client needs to open the provider widget.
type Checkout struct {
	Order  ProviderOrder   `json:"order"`
	Amount decimal.Decimal `json:"amount"`
	KeyID  string          `json:"key"`
}

func (s *Service) PublicKey() string { return s.KeyID }

// CreateProviderOrder prices the buyer's cart server-side and opens a
// provider order for that amount.
func (s *Service) CreateProviderOrder(ctx context.Context, buyerID string) (Checkout, error) {
	c, err := s.Carts.Get(ctx, buyerID)
	if err != nil {
		return Checkout{}, err
	}
	q, err := pricing.Snapshot(c)
	if err != nil {
		return Checkout{}, err
	}

	currency := s.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	po, err := s.Gateway.CreateOrder(ctx, q.MinorUnits(), currency, NewReceipt(now()))
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return Checkout{}, err
		}
		return Checkout{}, apperr.External("could not create payment order", err)
	}

	if s.Intents != nil {
		in := Intent{BuyerID: buyerID, AmountMinor: q.MinorUnits(), Currency: currency}
		if err := s.Intents.Save(ctx, po.ID, in); err != nil {
			return Checkout{}, apperr.Internal("save payment intent", err)
		}
	}
	return Checkout{Order: po, Amount: q.Total, KeyID: s.KeyID}, nil
}

// CheckIntent rejects a provider order that was opened for another buyer
// and returns the stored intent so the caller can match its amount.
// Provider orders with no stored intent (expired or created elsewhere) pass
// with found=false, since the signature alone already proves the gateway
// issued them.
func CheckIntent(ctx context.Context, store IntentStore, providerOrderRef, buyerID string) (in Intent, found bool, err error) {
	if store == nil {
		return Intent{}, false, nil
	}
	in, err = store.Load(ctx, providerOrderRef)
	if errors.Is(err, ErrNoIntent) {
		return Intent{}, false, nil
	}
	if err != nil {
		return Intent{}, false, apperr.Internal("load payment intent", err)
	}
	if in.BuyerID != buyerID {
		return Intent{}, false, apperr.SignatureMismatch
	}
	return in, true, nil
}
