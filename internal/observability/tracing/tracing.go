// Package tracing installs the OpenTelemetry tracer provider used by the
// spans in bookings, payments and notify.
package tracing

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/novellus/pilates-booking/pkg/logging"
)

// ShutdownFunc flushes pending spans.
type ShutdownFunc func(context.Context) error

// Options configures the exporter.
type Options struct {
	ServiceName string
	Version     string
	Environment string
	// Endpoint is an OTLP/gRPC collector address. Empty keeps the global
	// no-op provider.
	Endpoint string
	Insecure bool
}

// Setup exports spans to an OTLP collector when an endpoint is configured.
func Setup(ctx context.Context, opts Options, logger *logging.Logger) (ShutdownFunc, error) {
	if logger == nil {
		logger = logging.Default()
	}
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporterOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("tracing: otlp exporter: %w", err)
	}

	name := opts.ServiceName
	if name == "" {
		name = "pilates-booking"
	}
	res := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(name),
		semconv.ServiceVersion(opts.Version),
		semconv.DeploymentEnvironment(opts.Environment),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	logger.Info("tracing enabled", "endpoint", endpoint, "service", name)
	return tp.Shutdown, nil
}
