package otelx

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/bakkerme/adhunter/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/bakkerme/adhunter"

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// Init installs an OTLP tracer provider when tracing is enabled. The returned
// shutdown func is never nil.
func Init(ctx context.Context, logger *slog.Logger, cfg config.OTelEnvConfig) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		logger.Debug("otel disabled")
		return noop, nil
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "adhunter"
	}

	sampleRatio := min(max(cfg.SampleRatio, 0), 1)

	target := resolveTarget(cfg)
	exp, err := newTraceExporter(ctx, cfg, target)
	if err != nil {
		return noop, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.New(
		ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithProcess(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return noop, fmt.Errorf("build otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(2*time.Second)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info(
		"otel initialized",
		"service_name", serviceName,
		"otlp_endpoint", target.endpoint,
		"otlp_protocol", target.protocol,
		"sample_ratio", sampleRatio,
	)

	return tp.Shutdown, nil
}

// StartSpan starts a span on the global tracer, which is a no-op until Init
// installs a provider.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// EndSpan records err (if any) as the span status and ends the span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// exporterTarget is the resolved OTLP destination.
type exporterTarget struct {
	protocol string
	endpoint string
}

func resolveTarget(cfg config.OTelEnvConfig) exporterTarget {
	t := exporterTarget{
		protocol: strings.ToLower(strings.TrimSpace(cfg.Protocol)),
		endpoint: strings.TrimSpace(cfg.Endpoint),
	}
	switch t.protocol {
	case "", "grpc":
		t.protocol = "grpc"
	case "http":
		t.protocol = "http/protobuf"
	}
	if t.endpoint == "" {
		t.endpoint = "localhost:4317"
		if t.protocol == "http/protobuf" {
			t.endpoint = "localhost:4318"
		}
	}
	return t
}

func newTraceExporter(ctx context.Context, cfg config.OTelEnvConfig, target exporterTarget) (*otlptrace.Exporter, error) {
	switch target.protocol {
	case "http/protobuf":
		return newHTTPExporter(ctx, cfg, target.endpoint)
	case "grpc":
		return newGRPCExporter(ctx, cfg, target.endpoint)
	default:
		return nil, fmt.Errorf("unsupported OTEL_EXPORTER_OTLP_PROTOCOL %q (expected grpc or http/protobuf)", target.protocol)
	}
}

func newHTTPExporter(ctx context.Context, cfg config.OTelEnvConfig, endpoint string) (*otlptrace.Exporter, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if strings.Contains(endpoint, "://") {
		opts = []otlptracehttp.Option{otlptracehttp.WithEndpointURL(endpoint)}
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}
	return otlptracehttp.New(ctx, opts...)
}

// newGRPCExporter accepts either host:port or a URL, of which only the host
// is used.
func newGRPCExporter(ctx context.Context, cfg config.OTelEnvConfig, endpoint string) (*otlptrace.Exporter, error) {
	if strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse OTEL_EXPORTER_OTLP_ENDPOINT: %w", err)
		}
		endpoint = u.Host
	}
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	return otlptracegrpc.New(ctx, opts...)
}
