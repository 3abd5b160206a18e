// Package trace wires OpenTelemetry tracing for agent runs.
package trace

import (
	"context"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "aristotle"

// Config holds tracing configuration.
type Config struct {
	Enabled     bool    `toml:"enabled"`
	Endpoint    string  `toml:"endpoint"`     // host:port of the OTLP endpoint
	URLPath     string  `toml:"url_path"`     // path for the OTLP traces endpoint
	APIKey      string  `toml:"api_key"`      // sent as Authorization header
	Insecure    bool    `toml:"insecure"`     // plain HTTP instead of HTTPS
	SampleRatio float64 `toml:"sample_ratio"` // 0 or >=1 samples everything
}

// otelErrorHandler logs OTel internal errors via slog.
type otelErrorHandler struct{}

func (otelErrorHandler) Handle(err error) {
	slog.Error("otel error", "error", err)
}

// Init installs a global tracer provider. When tracing is disabled it
// returns a no-op shutdown and the global no-op tracer stays in place.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	otel.SetErrorHandler(otelErrorHandler{})

	var opts []otlptracehttp.Option
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.URLPath != "" {
		opts = append(opts, otlptracehttp.WithURLPath(cfg.URLPath))
	}
	if cfg.APIKey != "" {
		opts = append(opts, otlptracehttp.WithHeaders(map[string]string{
			"Authorization": "Bearer " + cfg.APIKey,
		}))
	}
	opts = append(opts, otlptracehttp.WithHTTPClient(&http.Client{
		Transport: &loggingTransport{inner: http.DefaultTransport},
	}))

	slog.Debug("otlp exporter config", "endpoint", cfg.Endpoint, "url_path", cfg.URLPath, "has_api_key", cfg.APIKey != "")

	inner, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(&loggingExporter{inner: inner}),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// loggingTransport wraps an http.RoundTripper and logs each export request.
type loggingTransport struct {
	inner http.RoundTripper
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	slog.Debug("otlp http request", "method", req.Method, "url", req.URL.String(), "content_length", req.ContentLength)
	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		slog.Error("otlp http error", "error", err)
		return resp, err
	}
	slog.Debug("otlp http response", "status", resp.StatusCode)
	return resp, nil
}

// loggingExporter wraps a SpanExporter and logs failed exports.
type loggingExporter struct {
	inner sdktrace.SpanExporter
}

func (e *loggingExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	err := e.inner.ExportSpans(ctx, spans)
	if err != nil {
		slog.Error("otlp export failed", "count", len(spans), "error", err)
	} else {
		slog.Debug("otlp export ok", "count", len(spans))
	}
	return err
}

func (e *loggingExporter) Shutdown(ctx context.Context) error {
	return e.inner.Shutdown(ctx)
}

// Tracer returns the aristotle tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(serviceName)
}
