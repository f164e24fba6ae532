package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/config"
	kafkax "github.com/ariefcatur/go-marketplace-orders/internal/kafka"
	"github.com/ariefcatur/go-marketplace-orders/internal/logging"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/projection"
	"github.com/ariefcatur/go-marketplace-orders/internal/redisx"
	"github.com/ariefcatur/go-marketplace-orders/internal/telemetry"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	service := cfg.ServiceName + "-projector"
	log := logging.MustNewLogger(service, cfg.Env)
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logging.ContextWithLogger(ctx, log)

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics("orders", reg)

	// metrics only; the projector serves no API
	metricsSrv := &http.Server{
		Addr:              getenv("PROJECTOR_METRICS_ADDR", ":9102"),
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics listener", zap.Error(err))
		}
	}()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	p := &projection.Projector{
		Redis:       rdb,
		Cache:       &projection.StatusCache{Redis: rdb},
		ServiceName: service,
		Metrics:     metrics,
	}

	topics := orders.AllTopics()
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProjectorGroup, topics, cfg.ProjectorWorkers, log.Named("kafka"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("projector started",
			zap.String("group", cfg.ProjectorGroup),
			zap.String("topics", strings.Join(topics, ",")),
			zap.Int("workers", cfg.ProjectorWorkers),
		)
		if err := cons.Start(ctx, p.Handle); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumer")
	cancel()
	<-done

	ctx2, cancel2 := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel2()
	_ = metricsSrv.Shutdown(ctx2)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
