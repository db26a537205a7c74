// Package otelbridge reconciles the SDK's native span context with
// OpenTelemetry so one logical trace can span both instrumentation worlds
// and cross process boundaries.
//
// Two directions are supported. A native span can become "current" for
// OpenTelemetry: a remote, sampled span context carrying the native trace and
// span ids is installed on the context, so otel spans started beneath it nest
// as children and inherit the numeric trace id. And a genuine otel span can
// become the parent of the next native span via ParentFromContext.
//
// Cross-process propagation uses the W3C TraceContext header format plus one
// custom header carrying the logical parent marker (a span handle string).
//
// The bridge requires the OpenTelemetry-compatible identifier scheme: native
// span ids must be 8-byte hex and trace ids 16-byte hex to be representable
// on the otel side.
package otelbridge

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// ParentHeader is the single custom header key carrying the logical parent
// marker across process boundaries, alongside the W3C traceparent header.
const ParentHeader = "x-arclight-parent"

// The bridge uses the W3C propagator directly rather than the otel global:
// the SDK must propagate correctly even in applications that never configure
// a global propagator.
var propagator = propagation.TraceContext{}

// Parent identifies a foreign span that the next native span should nest
// under. Both ids are in otel hex form.
type Parent struct {
	TraceID string
	SpanID  string
}

// ContextWithNativeSpan installs a native span as the current span for
// OpenTelemetry instrumentation. The placeholder is remote and sampled but
// never exported; it exists so otel spans started underneath pick up the
// native trace id and parent span id.
func ContextWithNativeSpan(ctx context.Context, traceID, spanID string) (context.Context, error) {
	tid, err := trace.TraceIDFromHex(traceID)
	if err != nil {
		return ctx, fmt.Errorf("bridge trace id %q: %w", traceID, err)
	}
	sid, err := trace.SpanIDFromHex(spanID)
	if err != nil {
		return ctx, fmt.Errorf("bridge span id %q: %w", spanID, err)
	}

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	return trace.ContextWithSpanContext(ctx, sc), nil
}

// ParentFromContext reads the active OpenTelemetry span context, native
// placeholder or genuine otel span alike. A native span created with this
// parent shares the originating trace id and records the originating span id
// as its sole parent.
func ParentFromContext(ctx context.Context) (Parent, bool) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return Parent{}, false
	}
	return Parent{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
	}, true
}

// Inject writes W3C trace context headers for the span context in ctx and,
// when parentHandle is non-empty, the logical parent marker. Use
// propagation.HeaderCarrier for http.Header and propagation.MapCarrier for
// plain string maps.
func Inject(ctx context.Context, carrier propagation.TextMapCarrier, parentHandle string) {
	propagator.Inject(ctx, carrier)
	if parentHandle != "" {
		carrier.Set(ParentHeader, parentHandle)
	}
}

// Extract reads W3C trace context headers into a new context and returns the
// logical parent marker, if any. The returned context feeds ParentFromContext
// (or otel tracers) on the receiving side.
func Extract(ctx context.Context, carrier propagation.TextMapCarrier) (context.Context, string) {
	return propagator.Extract(ctx, carrier), carrier.Get(ParentHeader)
}
