package memo

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/memoflight/keyer"
)

// tracing wraps each producer execution in an OpenTelemetry span. Only
// executions are traced; hits and joins produce no spans.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: end is best-effort and must not panic.
type tracing struct {
	name   string
	tracer trace.Tracer
}

func newTracing(name string, tracer trace.Tracer) tracing {
	if tracer == nil {
		tracer = tracenoop.NewTracerProvider().Tracer("memoflight")
	}
	return tracing{name: name, tracer: tracer}
}

// spanName returns the deterministic span name for the cached function.
// Format: memo.compute.<name> or memo.compute.
func (tr tracing) spanName() string {
	if tr.name != "" {
		return "memo.compute." + tr.name
	}
	return "memo.compute"
}

// start opens the span for one producer execution.
func (tr tracing) start(ctx context.Context, key keyer.Key) (context.Context, trace.Span) {
	return tr.tracer.Start(ctx, tr.spanName(),
		trace.WithAttributes(
			attribute.String("memo.name", tr.name),
			attribute.String("memo.key", string(key)),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// end closes the span, recording the terminal error if present.
func (tr tracing) end(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
