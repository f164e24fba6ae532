package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the RED metrics shared by use cases, HTTP and the event
// pipeline.
type Metrics struct {
	UseCaseRequests  *prometheus.CounterVec   // usecase_requests_total{use_case,outcome}
	UseCaseDuration  *prometheus.HistogramVec // usecase_duration_seconds{use_case}
	ExternalRequests *prometheus.CounterVec   // external_requests_total{peer,endpoint,outcome}
	HTTPRequests     *prometheus.CounterVec   // http_requests_total{method,route,code}
	HTTPDuration     *prometheus.HistogramVec // http_request_duration_seconds{method,route}
	EventsPublished  *prometheus.CounterVec   // events_published_total{event_type,outcome}
	EventsConsumed   *prometheus.CounterVec   // events_consumed_total{topic,outcome}
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		UseCaseRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "usecase_requests_total",
			Help: "Use case executions by outcome.",
		}, []string{"use_case", "outcome"}),
		UseCaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "usecase_duration_seconds",
			Help:    "Use case latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"use_case"}),
		ExternalRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "external_requests_total",
			Help: "Calls to external systems by outcome.",
		}, []string{"peer", "endpoint", "outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_published_total",
			Help: "Domain events handed to the broker.",
		}, []string{"event_type", "outcome"}),
		EventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_consumed_total",
			Help: "Domain events processed by consumers.",
		}, []string{"topic", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.UseCaseRequests, m.UseCaseDuration, m.ExternalRequests,
			m.HTTPRequests, m.HTTPDuration,
			m.EventsPublished, m.EventsConsumed,
		)
	}
	return m
}
