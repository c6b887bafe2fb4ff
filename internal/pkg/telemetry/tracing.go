package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys used across the loader and sessions.
const (
	AttrEndpoint   = attribute.Key("ogc.endpoint")
	AttrCollection = attribute.Key("ogc.collection")
	AttrFormat     = attribute.Key("ogc.format")
	AttrBBox       = attribute.Key("ogc.bbox")
	AttrLimit      = attribute.Key("ogc.limit")
	AttrFeatures   = attribute.Key("ogc.features")
	AttrStatusCode = attribute.Key("http.status_code")
)

// Tracer returns the named tracer from the global provider.
// Without InitTracer it is a no-op tracer.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// InitTracer installs an OTLP/gRPC trace exporter as the global provider.
// The returned function flushes and shuts it down.
func InitTracer(ctx context.Context, serviceName, otlpAddr string) (func(), error) {
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(otlpAddr),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}, nil
}
