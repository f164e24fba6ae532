package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/telemetry"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventType    = "x-event-type"
	HeaderEventVersion = "x-event-version"
)

type publishSink interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers ...kafka.Header) error
}

// EventPublisher wraps order events in the v1 envelope and routes them to
// their topic, keyed by order id.
type EventPublisher struct {
	Producer    publishSink
	ServiceName string
	Metrics     *telemetry.Metrics
	Now         func() time.Time
}

func (p *EventPublisher) Publish(ctx context.Context, eventType, orderID string, payload any) error {
	topic := orders.TopicFor(eventType)
	if topic == "" {
		return fmt.Errorf("no topic for event %q", eventType)
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	env := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    now().UTC(),
		Producer:      p.ServiceName,
		TraceID:       telemetry.TraceID(ctx),
		CorrelationID: orderID,
		Payload:       MustMarshal(payload),
	}
	err := p.Producer.Publish(ctx, topic, orders.PartitionKey(orderID), MustMarshal(env),
		kafka.Header{Key: HeaderEventType, Value: []byte(eventType)},
		kafka.Header{Key: HeaderEventVersion, Value: []byte("1")},
	)
	if p.Metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		p.Metrics.EventsPublished.WithLabelValues(eventType, outcome).Inc()
	}
	return err
}
