package otel

import (
	"context"

	"github.com/policyforge/wspolicy/internal/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AttrOpID is the span attribute carrying the operation id.
const AttrOpID = "wspolicy.op_id"

// StartSpan starts a span named name when tracing is enabled in ctx. The
// returned finish func ends the span, recording err if non-nil. Without a
// handle it returns ctx unchanged and a no-op finish.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(err error, attrs ...attribute.KeyValue)) {
	h := From(ctx)
	if h == nil || h.Tracer == nil {
		return ctx, func(error, ...attribute.KeyValue) {}
	}

	if id := observability.OpID(ctx); id != "" {
		attrs = append(attrs, attribute.String(AttrOpID, id))
	}
	ctx, span := h.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(err error, end ...attribute.KeyValue) {
		if len(end) > 0 {
			span.SetAttributes(end...)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed")
		} else {
			span.SetStatus(codes.Ok, "success")
		}
		span.End()
	}
}
