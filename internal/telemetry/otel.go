package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// TracerName is the instrumentation scope used for bootstrap spans.
const TracerName = "frappe-env"

const metricExportInterval = 15 * time.Second

// Provider owns the tracer and meter providers registered globally by
// InitProvider, and the collector connection they share.
type Provider struct {
	tracer *sdktrace.TracerProvider
	meter  *sdkmetric.MeterProvider
	conn   *grpc.ClientConn
}

// InitProvider registers global OTEL trace and metric providers exporting
// to the collector at endpoint. The connection is established lazily, so an
// unreachable collector does not delay a bootstrap. attrs are added to the
// resource, e.g. the site and bench being provisioned.
func InitProvider(ctx context.Context, endpoint, serviceName string, useInsecure bool, attrs ...attribute.KeyValue) (*Provider, error) {
	res, err := newResource(ctx, serviceName, attrs)
	if err != nil {
		return nil, err
	}

	var dialOpts []grpc.DialOption
	if useInsecure {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	conn, err := grpc.NewClient(endpoint, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dialing OTEL collector %s: %w", endpoint, err)
	}
	p := &Provider{conn: conn}

	spans, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, errors.Join(fmt.Errorf("trace exporter: %w", err), conn.Close())
	}
	p.tracer = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spans),
		sdktrace.WithResource(res),
	)

	points, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, errors.Join(fmt.Errorf("metric exporter: %w", err), p.tracer.Shutdown(ctx), conn.Close())
	}
	p.meter = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(points, sdkmetric.WithInterval(metricExportInterval))),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(p.tracer)
	otel.SetMeterProvider(p.meter)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		slog.Debug("otel export failed", "error", err)
	}))

	return p, nil
}

func newResource(ctx context.Context, serviceName string, attrs []attribute.KeyValue) (*resource.Resource, error) {
	base := []attribute.KeyValue{
		semconv.ServiceName(serviceName),
		semconv.ServiceNamespace("frappe-dev"),
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(append(base, attrs...)...),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("building OTEL resource: %w", err)
	}
	return res, nil
}

// Shutdown flushes pending spans and metrics, then closes the collector
// connection. Flush failures against an absent collector are not reported.
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.meter.Shutdown(ctx); err != nil {
		slog.Debug("otel meter shutdown", "error", err)
	}
	if err := p.tracer.Shutdown(ctx); err != nil {
		slog.Debug("otel tracer shutdown", "error", err)
	}
	return p.conn.Close()
}
