package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// TraceContext is the W3C trace context of a span in its wire form, for
// storing next to a record that is handed off asynchronously.
type TraceContext struct {
	Parent string
	State  string
}

// CaptureTraceContext serialises the span in ctx with the global propagator.
// The result is empty when ctx carries no span.
func CaptureTraceContext(ctx context.Context) TraceContext {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return TraceContext{Parent: carrier.Get("traceparent"), State: carrier.Get("tracestate")}
}

func (tc TraceContext) Empty() bool { return tc.Parent == "" && tc.State == "" }

// Attach returns ctx continuing the captured trace. An empty TraceContext
// leaves ctx untouched.
func (tc TraceContext) Attach(ctx context.Context) context.Context {
	if tc.Empty() {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier{
		"traceparent": tc.Parent,
		"tracestate":  tc.State,
	})
}
