package telemetry

import (
	"context"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const spanPrefix = "UC."

// Observer wraps each use case in a span, RED metrics and a closing
// use_case_done log line. A nil Observer is valid and only logs.
type Observer struct {
	Tracer  trace.Tracer
	Metrics *Metrics
}

func NewObserver(tp trace.TracerProvider, m *Metrics) *Observer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Observer{Tracer: tp.Tracer("marketplace-orders"), Metrics: m}
}

// Run is one in-flight use case execution.
type Run struct {
	ctx     context.Context
	useCase string
	span    trace.Span
	metrics *Metrics
	start   time.Time
	status  string
	fields  []zap.Field
}

// Start opens a span named UC.<name> and returns the derived context.
func (o *Observer) Start(ctx context.Context, useCase, name string, attrs ...attribute.KeyValue) (context.Context, *Run) {
	tracer := trace.Tracer(nil)
	var m *Metrics
	if o != nil {
		tracer, m = o.Tracer, o.Metrics
	}
	if tracer == nil {
		tracer = otel.Tracer("marketplace-orders")
	}
	attrs = append(attrs, attribute.String("use_case", useCase))
	ctx, span := tracer.Start(ctx, spanPrefix+name, trace.WithAttributes(attrs...))
	return ctx, &Run{ctx: ctx, useCase: useCase, span: span, metrics: m, start: time.Now(), status: "OK"}
}

// Context returns the context carrying the run's span.
func (r *Run) Context() context.Context { return r.ctx }

// Annotate adds fields to the closing log line and the span.
func (r *Run) Annotate(key, value string) {
	r.fields = append(r.fields, zap.String(key, value))
	r.span.SetAttributes(attribute.String(key, value))
}

// Status overrides the status text reported on success, e.g. IDEMPOTENT_REPLAY.
func (r *Run) Status(text string) { r.status = text }

// External records a call to an outside system under the run.
func (r *Run) External(peer, endpoint string, err error) {
	if r.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	r.metrics.ExternalRequests.WithLabelValues(peer, endpoint, outcome).Inc()
}

// End closes the span, records metrics and writes use_case_done.
func (r *Run) End(err error) {
	lat := time.Since(r.start).Seconds()
	outcome := "success"
	status := r.status
	if err != nil {
		outcome = "error"
		status = string(apperr.KindOf(err))
		r.span.RecordError(err)
		r.span.SetStatus(codes.Error, status)
	} else {
		r.span.SetStatus(codes.Ok, status)
	}
	r.span.End()

	if r.metrics != nil {
		r.metrics.UseCaseRequests.WithLabelValues(r.useCase, outcome).Inc()
		r.metrics.UseCaseDuration.WithLabelValues(r.useCase).Observe(lat)
	}

	fields := append([]zap.Field{
		zap.String("use_case", r.useCase),
		zap.String("outcome", outcome),
		zap.String("status", status),
		zap.Float64("latency_seconds", lat),
	}, r.fields...)
	if id := TraceID(r.ctx); id != "" {
		fields = append(fields, zap.String("trace_id", id))
	}
	log := logging.FromContext(r.ctx)
	switch {
	case err == nil:
		log.Info("use_case_done", fields...)
	case apperr.KindOf(err) == apperr.KindInternal:
		log.Error("use_case_done", append(fields, zap.Error(err))...)
	default:
		log.Info("use_case_done", append(fields, zap.String("error", err.Error()))...)
	}
}
