package observability

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is used by the HTTP middleware and the span helpers below. It is a
// no-op tracer until InitTracing installs a provider.
var Tracer trace.Tracer = otel.Tracer("buspass-api")

// AttrApplicationNo tags spans that concern a single application.
const AttrApplicationNo = attribute.Key("buspass.application_no")

// TracingConfig holds configuration for initializing the tracer.
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Enabled        bool
	Exporter       string // "stdout" or "otlp"
	// OTLPEndpoint is host:port (plain HTTP) or a full http(s):// URL.
	OTLPEndpoint string
	SamplerRatio float64
}

// InitTracing installs the global tracer provider and propagators. The
// returned function flushes pending spans; call it on shutdown.
func InitTracing(cfg TracingConfig) (func(context.Context) error, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "buspass-api"
	}
	if !cfg.Enabled {
		Tracer = otel.Tracer(cfg.ServiceName)
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := newExporter(cfg)
	if err != nil {
		return nil, fmt.Errorf("tracing exporter %q: %w", cfg.Exporter, err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SamplerRatio)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	Tracer = tp.Tracer(cfg.ServiceName)

	return tp.Shutdown, nil
}

func newExporter(cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "otlp":
		var opts []otlptracehttp.Option
		switch endpoint := cfg.OTLPEndpoint; {
		case strings.HasPrefix(endpoint, "http://"), strings.HasPrefix(endpoint, "https://"):
			opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
		case endpoint != "":
			opts = append(opts, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(context.Background(), opts...)
	case "", "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return nil, fmt.Errorf("unknown exporter")
	}
}

// samplerFor samples every trace at ratio >= 1, otherwise follows the parent
// and samples new roots at the given ratio.
func samplerFor(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// StartServiceSpan opens a span for a service operation such as
// "lifecycle.approve". applicationNo is attached when known.
func StartServiceSpan(ctx context.Context, operation, applicationNo string) (context.Context, trace.Span) {
	ctx, span := Tracer.Start(ctx, "service."+operation, trace.WithSpanKind(trace.SpanKindInternal))
	if applicationNo != "" {
		span.SetAttributes(AttrApplicationNo.String(applicationNo))
	}
	return ctx, span
}

// StartStoreSpan opens a span around a repository call on table.
func StartStoreSpan(ctx context.Context, table, operation string) (context.Context, trace.Span) {
	ctx, span := Tracer.Start(ctx, "repository."+table+"."+operation, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		semconv.DBSystemPostgreSQL,
		semconv.DBOperation(operation),
		semconv.DBSQLTable(table),
	)
	return ctx, span
}

// StartCacheSpan opens a span around a Redis round trip for key.
func StartCacheSpan(ctx context.Context, operation, key string) (context.Context, trace.Span) {
	ctx, span := Tracer.Start(ctx, "redis."+operation, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		semconv.DBSystemRedis,
		semconv.DBOperation(operation),
		attribute.String("cache.key", key),
	)
	return ctx, span
}
