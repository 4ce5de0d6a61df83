package tracer

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	//nolint:gochecknoglobals // Global tracer is intentional for application-wide spans
	defaultTracer trace.Tracer
	//nolint:gochecknoglobals // Global initOnce is intentional for thread-safe initialization
	initOnce sync.Once
	//nolint:gochecknoglobals // Init error is surfaced once from Init
	errInit error
)

// Config controls the OTLP trace exporter. An empty EndpointURL or
// Enabled=false yields a noop tracer.
type Config struct {
	ServiceName string
	EndpointURL string
	Enabled     bool
	SampleRatio float64
	Insecure    bool
}

// Init sets up the global tracer. Safe to call multiple times; only the
// first call takes effect.
func Init(cfg Config) error {
	initOnce.Do(func() {
		t, err := newTracer(cfg)
		if err != nil {
			errInit = err
			return
		}
		defaultTracer = t
	})
	return errInit
}

// Start begins a span. Falls back to a noop span when Init has not run or
// tracing is disabled.
func Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if defaultTracer == nil {
		return noop.NewTracerProvider().Tracer("noop").Start(ctx, spanName, opts...)
	}
	return defaultTracer.Start(ctx, spanName, opts...)
}
