// Package telemetry bootstraps OpenTelemetry tracing and metrics. Spans from
// otelhttp and otelpgx, and the filing metrics, all flow through the global
// providers installed here.
package telemetry

import (
	"context"
	"errors"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ServiceName identifies this process in exported telemetry.
const ServiceName = "taxquarter-backend"

// Setup installs the global tracer and meter providers. When
// OTEL_EXPORTER_OTLP_ENDPOINT is set telemetry goes over OTLP (grpc by
// default, http when OTEL_EXPORTER_OTLP_PROTOCOL says so); otherwise it is
// written to stdout, which suits local development.
func Setup(ctx context.Context, version string) (func(context.Context) error, error) {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, err
	}

	useOTLP := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
	useHTTP := os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL") == "http/protobuf"

	var traceExporter sdktrace.SpanExporter
	var metricExporter sdkmetric.Exporter

	switch {
	case useOTLP && useHTTP:
		if traceExporter, err = otlptracehttp.New(ctx); err != nil {
			return nil, err
		}
		if metricExporter, err = otlpmetrichttp.New(ctx); err != nil {
			return nil, err
		}
	case useOTLP:
		if traceExporter, err = otlptracegrpc.New(ctx); err != nil {
			return nil, err
		}
		if metricExporter, err = otlpmetricgrpc.New(ctx); err != nil {
			return nil, err
		}
	default:
		if traceExporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint()); err != nil {
			return nil, err
		}
		if metricExporter, err = stdoutmetric.New(); err != nil {
			return nil, err
		}
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
			sdkmetric.WithInterval(time.Minute))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	return func(ctx context.Context) error {
		return errors.Join(
			tracerProvider.Shutdown(ctx),
			meterProvider.Shutdown(ctx),
		)
	}, nil
}
