package otel

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/policyforge/wspolicy/internal/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "disabled is always valid",
			cfg:     Config{Enabled: false, Protocol: "invalid", SampleRatio: -1},
			wantErr: false,
		},
		{
			name:    "valid otlphttp",
			cfg:     Config{Enabled: true, Protocol: ProtocolHTTP, SampleRatio: 0.5, ServiceName: ServiceName},
			wantErr: false,
		},
		{
			name:    "valid otlpgrpc",
			cfg:     Config{Enabled: true, Protocol: ProtocolGRPC, SampleRatio: 1.0, ServiceName: ServiceName},
			wantErr: false,
		},
		{
			name:    "invalid protocol",
			cfg:     Config{Enabled: true, Protocol: "invalid", SampleRatio: 1.0},
			wantErr: true,
		},
		{
			name:    "sample ratio below 0",
			cfg:     Config{Enabled: true, Protocol: ProtocolHTTP, SampleRatio: -0.1},
			wantErr: true,
		},
		{
			name:    "sample ratio above 1",
			cfg:     Config{Enabled: true, Protocol: ProtocolHTTP, SampleRatio: 1.5},
			wantErr: true,
		},
		{
			name:    "empty service name",
			cfg:     Config{Enabled: true, Protocol: ProtocolHTTP, SampleRatio: 1.0},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStartSpan_RecordsAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	ctx := WithHandle(context.Background(), InitWithProvider(tp))
	ctx = observability.WithOpID(ctx)
	wantOpID := observability.OpID(ctx)

	_, finish := StartSpan(ctx, "wspolicy.normalize", attribute.String("wspolicy.command", "normalize"))
	finish(nil, attribute.Int("wspolicy.policies", 2))

	_ = tp.ForceFlush(ctx)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	s := spans[0]
	if s.Name() != "wspolicy.normalize" {
		t.Errorf("span name = %q, want %q", s.Name(), "wspolicy.normalize")
	}
	if s.Status().Code != codes.Ok {
		t.Errorf("span status = %v, want Ok", s.Status().Code)
	}

	attrs := map[string]attribute.Value{}
	for _, attr := range s.Attributes() {
		attrs[string(attr.Key)] = attr.Value
	}
	if got := attrs["wspolicy.command"].AsString(); got != "normalize" {
		t.Errorf("wspolicy.command = %q, want %q", got, "normalize")
	}
	if got := attrs[AttrOpID].AsString(); got != wantOpID {
		t.Errorf("%s = %q, want %q", AttrOpID, got, wantOpID)
	}
	if got := attrs["wspolicy.policies"].AsInt64(); got != 2 {
		t.Errorf("wspolicy.policies = %d, want 2", got)
	}
}

func TestStartSpan_RecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	ctx := WithHandle(context.Background(), InitWithProvider(tp))

	_, finish := StartSpan(ctx, "wspolicy.failing")
	finish(errors.New("something went wrong"))

	_ = tp.ForceFlush(ctx)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	s := spans[0]
	if s.Status().Code != codes.Error {
		t.Errorf("span status = %v, want Error", s.Status().Code)
	}

	foundError := false
	for _, e := range s.Events() {
		if e.Name == "exception" {
			foundError = true
		}
	}
	if !foundError {
		t.Error("expected error event to be recorded")
	}
}

func TestStartSpan_Disabled(t *testing.T) {
	ctx := context.Background()
	got, finish := StartSpan(ctx, "wspolicy.noop")
	if got != ctx {
		t.Error("StartSpan without a handle should return the same context")
	}
	finish(errors.New("ignored")) // must not panic
}

func TestContextRoundtrip(t *testing.T) {
	// Without handle
	ctx := context.Background()
	if h := From(ctx); h != nil {
		t.Error("expected nil handle from empty context")
	}

	// With handle
	handle := &Handle{}
	ctx = WithHandle(ctx, handle)
	if got := From(ctx); got != handle {
		t.Error("expected to retrieve the same handle from context")
	}
}

func TestHandle_ShutdownWithoutProvider(t *testing.T) {
	var nilHandle *Handle
	if err := nilHandle.Shutdown(context.Background()); err != nil {
		t.Errorf("nil handle Shutdown() = %v, want nil", err)
	}
	tp := sdktrace.NewTracerProvider()
	if err := InitWithProvider(tp).Shutdown(context.Background()); err != nil {
		t.Errorf("test handle Shutdown() = %v, want nil", err)
	}
}

func TestResolveEndpoint(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		env  string
		want string
	}{
		{"explicit", Config{Endpoint: "collector:4318", Protocol: ProtocolHTTP}, "env:4318", "collector:4318"},
		{"env", Config{Protocol: ProtocolHTTP}, "env:4318", "env:4318"},
		{"http default", Config{Protocol: ProtocolHTTP}, "", defaultHTTPEndpoint},
		{"grpc default", Config{Protocol: ProtocolGRPC}, "", defaultGRPCEndpoint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", tt.env)
			if got := resolveEndpoint(tt.cfg); got != tt.want {
				t.Errorf("resolveEndpoint() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{1, "AlwaysOnSampler"},
		{1.5, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
	}
	for _, tt := range tests {
		if got := newSampler(tt.ratio).Description(); got != tt.want {
			t.Errorf("newSampler(%v) = %q, want %q", tt.ratio, got, tt.want)
		}
	}
	if got := newSampler(0.25).Description(); !strings.HasPrefix(got, "ParentBased{") {
		t.Errorf("newSampler(0.25) = %q, want a parent-based sampler", got)
	}
}
