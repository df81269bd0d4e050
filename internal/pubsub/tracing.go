package pubsub

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "batepapo-pubsub"

// TracingConfig holds configuration for bus tracing.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	ZipkinURL   string
}

// SetupOTel returns a tracer that exports bus spans to Zipkin. When tracing
// is disabled it returns a no-op tracer. The returned cleanup flushes
// pending spans.
func SetupOTel(ctx context.Context, config TracingConfig) (trace.Tracer, func(context.Context), error) {
	if !config.Enabled {
		return noop.NewTracerProvider().Tracer(tracerName), func(context.Context) {}, nil
	}

	exporter, err := zipkin.New(config.ZipkinURL)
	if err != nil {
		return nil, nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	cleanup := func(ctx context.Context) {
		if err := tp.Shutdown(ctx); err != nil {
			slog.Error("Failed to flush traces", "error", err)
		}
	}

	return tp.Tracer(tracerName), cleanup, nil
}
