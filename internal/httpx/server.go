package httpx

import (
	"net/http"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/auth"
	"github.com/ariefcatur/go-marketplace-orders/internal/cart"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/payment"
	"github.com/ariefcatur/go-marketplace-orders/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	writeTimeout = 5 * time.Second
	readTimeout  = 3 * time.Second
)

type Deps struct {
	Log      *zap.Logger
	Metrics  *telemetry.Metrics
	Gatherer prometheus.Gatherer
	Auth     auth.Authenticator
	Carts    *cart.Service
	Orders   *orders.Service
	Payments *payment.Service
}

func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, observe(d.Log, d.Metrics), middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(authenticate(d.Auth))
		(&CartHandler{Carts: d.Carts}).Register(r)
		(&OrdersHandler{Orders: d.Orders}).Register(r)
		(&PaymentsHandler{Payments: d.Payments, Orders: d.Orders}).Register(r)
	})
	return r
}
