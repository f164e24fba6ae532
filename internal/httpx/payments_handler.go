package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-marketplace-orders/internal/auth"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/payment"
	"github.com/go-chi/chi/v5"
)

type PaymentsHandler struct {
	Payments *payment.Service
	Orders   *orders.Service
}

// verifyPaymentReq uses the field names the provider's checkout widget
// hands back to the client.
type verifyPaymentReq struct {
	OrderRef        string `json:"razorpay_order_id"`
	PaymentRef      string `json:"razorpay_payment_id"`
	Signature       string `json:"razorpay_signature"`
	ShippingAddress string `json:"shippingAddress"`
}

func (h *PaymentsHandler) Register(r chi.Router) {
	r.Route("/payments", func(r chi.Router) {
		r.Use(requireRole(auth.RoleBuyer))
		r.Get("/key", h.key)
		r.Post("/create", h.create)
		r.Post("/verify", h.verify)
	})
}

func (h *PaymentsHandler) key(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"key": h.Payments.PublicKey()})
}

func (h *PaymentsHandler) create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	co, err := h.Payments.CreateProviderOrder(ctx, principal(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, co)
}

func (h *PaymentsHandler) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	o, err := h.Orders.PlaceOnline(ctx, principal(r).UserID, req.ShippingAddress, orders.OnlinePayment{
		ProviderOrderRef:   req.OrderRef,
		ProviderPaymentRef: req.PaymentRef,
		Signature:          req.Signature,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}
