// Package tracing wires optional OpenTelemetry distributed tracing into the
// request path. Agent pipelines fan out across the HTTP API, the model
// provider, and Temporal workers, so a single request can cross several
// process boundaries; W3C trace context ties those hops back together.
//
// Everything here degrades to a no-op when tracing is disabled, so callers
// wire the middleware and transport unconditionally.
package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ShutdownFunc flushes buffered spans and releases exporter resources.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Config controls trace export. Endpoint is the OTLP/HTTP collector address
// ("host:port", no scheme); ServiceName labels spans in the backend.
type Config struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

// Setup installs a global TracerProvider backed by an OTLP HTTP exporter and
// registers W3C TraceContext + Baggage propagation. The returned shutdown
// must run during server close to flush in-flight spans.
//
// With Enabled false it installs nothing and the shutdown is a no-op.
func Setup(cfg Config) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return noopShutdown, nil
	}

	tp, err := newProvider(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

func newProvider(ctx context.Context, cfg Config) (*sdktrace.TracerProvider, error) {
	// Local collectors speak plaintext; TLS termination belongs to the mesh.
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(cfg.ServiceName)),
	)
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

// Middleware instruments inbound requests. Spans are named by method and
// path so /v1/agents/process and /v1/pipelines show up as distinct
// operations. Without a global TracerProvider the handler passes through.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "storyforge.request",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}
}

// HTTPTransport instruments an outbound RoundTripper so calls to the model
// provider carry traceparent/tracestate headers. A nil base means
// http.DefaultTransport.
func HTTPTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return otelhttp.NewTransport(base)
}
