package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/auth"
	"github.com/ariefcatur/go-marketplace-orders/internal/cart"
	"github.com/ariefcatur/go-marketplace-orders/internal/catalog"
	"github.com/ariefcatur/go-marketplace-orders/internal/config"
	"github.com/ariefcatur/go-marketplace-orders/internal/httpx"
	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-marketplace-orders/internal/kafka"
	"github.com/ariefcatur/go-marketplace-orders/internal/logging"
	"github.com/ariefcatur/go-marketplace-orders/internal/memory"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/payment"
	"github.com/ariefcatur/go-marketplace-orders/internal/postgres"
	"github.com/ariefcatur/go-marketplace-orders/internal/projection"
	"github.com/ariefcatur/go-marketplace-orders/internal/redisx"
	"github.com/ariefcatur/go-marketplace-orders/internal/telemetry"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

type storage interface {
	orders.UnitOfWork
	Carts() cart.Repository
	Catalog() catalog.Reader
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.MustNewLogger(cfg.ServiceName, cfg.Env)
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, shutdownTracing, err := telemetry.InitTracing(ctx, log, telemetry.TracingConfig{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OTLPEndpoint,
		Probability: cfg.TraceSampleRatio,
	})
	if err != nil {
		log.Fatal("tracing init", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics("orders", reg)

	policy := inventory.Policy{AllowNegative: cfg.InventoryAllowNegative}
	var store storage
	switch cfg.StorageDriver {
	case "memory":
		log.Warn("using in-memory storage; data is lost on restart")
		store = memory.New(policy)
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatal("db migrate", zap.Error(err))
		}
		store = postgres.NewStore(db, policy)
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log.Named("kafka"))
	prod.Start(ctx)

	intents := &payment.RedisIntents{Redis: rdb}
	carts := cart.NewService(store.Carts(), store.Catalog())
	ordersSvc := &orders.Service{
		UoW:      store,
		IDs:      orders.UUIDs{},
		Verifier: payment.Verifier{Secret: cfg.PaymentSigningSecret},
		Intents:  intents,
		Events: &kafkax.EventPublisher{
			Producer:    prod,
			ServiceName: cfg.ServiceName,
			Metrics:     metrics,
		},
		Cache:           &projection.StatusCache{Redis: rdb},
		Obs:             telemetry.NewObserver(tp, metrics),
		Transitions:     orders.Transitions{Strict: cfg.OrderStrictTransitions},
		RestockOnCancel: cfg.OrderRestockOnCancel,
	}
	payments := &payment.Service{
		KeyID:    cfg.RazorpayKeyID,
		Currency: cfg.PaymentCurrency,
		Carts:    carts,
		Gateway:  payment.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret),
		Intents:  intents,
	}

	router := httpx.NewRouter(httpx.Deps{
		Log:      log,
		Metrics:  metrics,
		Gatherer: reg,
		Auth:     &auth.RedisSessions{Redis: rdb},
		Carts:    carts,
		Orders:   ordersSvc,
		Payments: payments,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("storage", cfg.StorageDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	cancel()          // stop producer loop; it flushes what is queued
	prod.WaitClosed() // drain
	if err := shutdownTracing(ctx2); err != nil {
		log.Warn("tracing shutdown", zap.Error(err))
	}
}
