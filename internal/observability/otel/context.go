package otel

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Handle is an initialized tracer. A nil or zero Handle is safe to shut down.
type Handle struct {
	Tracer   trace.Tracer
	shutdown func(context.Context) error
}

// Shutdown flushes pending spans and stops the provider Init created.
func (h *Handle) Shutdown(ctx context.Context) error {
	if h == nil || h.shutdown == nil {
		return nil
	}
	return h.shutdown(ctx)
}

type handleKey struct{}

// WithHandle stores h in ctx for StartSpan.
func WithHandle(ctx context.Context, h *Handle) context.Context {
	return context.WithValue(ctx, handleKey{}, h)
}

// From returns the handle in ctx, or nil when tracing is off.
func From(ctx context.Context) *Handle {
	h, _ := ctx.Value(handleKey{}).(*Handle)
	return h
}
