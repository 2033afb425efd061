package otel

import (
	"context"
	"fmt"
	"os"

	"github.com/policyforge/wspolicy/internal/observability"
	"github.com/policyforge/wspolicy/internal/version"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Default OTLP endpoints when neither the config nor the environment names one.
const (
	defaultHTTPEndpoint = "http://localhost:4318"
	defaultGRPCEndpoint = "localhost:4317"
)

// Init builds a batching tracer provider exporting over OTLP, installs it as
// the global provider and returns its handle. The op id in ctx, if any,
// becomes the service instance id of every exported span.
func Init(ctx context.Context, cfg Config) (*Handle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
	}
	exporter, err := newExporter(ctx, cfg.Protocol, resolveEndpoint(cfg), cfg.Insecure)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s exporter: %w", cfg.Protocol, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(cfg.SampleRatio)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Handle{Tracer: tp.Tracer(cfg.ServiceName), shutdown: tp.Shutdown}, nil
}

// InitWithProvider wraps an existing provider, typically a test recorder.
func InitWithProvider(tp trace.TracerProvider) *Handle {
	return &Handle{Tracer: tp.Tracer(ServiceName)}
}

// resolveEndpoint prefers the configured endpoint, then
// OTEL_EXPORTER_OTLP_ENDPOINT, then the protocol's local default.
func resolveEndpoint(cfg Config) string {
	if cfg.Endpoint != "" {
		return cfg.Endpoint
	}
	if env := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); env != "" {
		return env
	}
	if cfg.Protocol == ProtocolGRPC {
		return defaultGRPCEndpoint
	}
	return defaultHTTPEndpoint
}

// newResource is schemaless so merging it with the SDK default cannot
// conflict on schema URLs.
func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []resource.Option{
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(version.BuildVersion()),
			semconv.TelemetrySDKLanguageGo,
			semconv.TelemetrySDKVersion(otel.Version()),
		),
	}
	if id := observability.OpID(ctx); id != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceInstanceID(id)))
	}
	own, err := resource.New(ctx, attrs...)
	if err != nil {
		return nil, err
	}
	return resource.Merge(resource.Default(), own)
}

func newExporter(ctx context.Context, protocol, endpoint string, insecure bool) (sdktrace.SpanExporter, error) {
	if protocol == ProtocolGRPC {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return otlptracehttp.New(ctx, opts...)
}

// newSampler samples everything at 1, nothing at 0 and otherwise follows the
// parent's decision with a ratio-based root sampler.
func newSampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}
