package memo

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelObserver records cache events as OpenTelemetry metrics.
type OTelObserver struct {
	lookups    metric.Int64Counter
	failures   metric.Int64Counter
	rejections metric.Int64Counter
}

// NewOTelObserver creates an Observer backed by the given meter.
func NewOTelObserver(meter metric.Meter) (*OTelObserver, error) {
	lookups, err := meter.Int64Counter(
		"memo.lookups.total",
		metric.WithDescription("Cache lookups by outcome"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		"memo.failures.total",
		metric.WithDescription("Computations that failed or were cancelled"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	rejections, err := meter.Int64Counter(
		"memo.store_rejections.total",
		metric.WithDescription("Computed values refused by the store admission policy"),
		metric.WithUnit("{rejection}"),
	)
	if err != nil {
		return nil, err
	}

	return &OTelObserver{
		lookups:    lookups,
		failures:   failures,
		rejections: rejections,
	}, nil
}

// On implements Observer.
func (o *OTelObserver) On(e EventData) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("memo.name", e.Name),
		attribute.String("memo.outcome", e.Event.String()),
	)

	switch e.Event {
	case EventHit, EventMiss, EventJoin:
		o.lookups.Add(ctx, 1, attrs)
	case EventError, EventCancelled:
		o.failures.Add(ctx, 1, attrs)
	case EventRejected:
		o.rejections.Add(ctx, 1, attrs)
	}
}

// Ensure OTelObserver implements Observer.
var _ Observer = (*OTelObserver)(nil)
