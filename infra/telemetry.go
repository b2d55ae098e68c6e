package infra

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/tnqbao/gau-job-orchestrator/config"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// TelemetryClient owns the global tracer and meter providers.
type TelemetryClient struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

func serviceNameAttr(name string) attribute.KeyValue {
	return attribute.String("service.name", name)
}

func deploymentAttr(env string) attribute.KeyValue {
	return attribute.String("deployment.environment", env)
}

// InitTelemetryClient installs OTLP trace and metric pipelines as the otel
// globals. Without an endpoint the no-op globals stay in place and only the
// W3C propagator is registered.
func InitTelemetryClient(cfg *config.EnvConfig) *TelemetryClient {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if cfg.Grafana.OTLPEndpoint == "" {
		return &TelemetryClient{}
	}

	ctx := context.Background()
	res := serviceResource(cfg)
	client := &TelemetryClient{}

	traceExporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.Grafana.OTLPEndpoint))
	if err != nil {
		log.Printf("Warning: failed to create OTLP trace exporter: %v", err)
	} else {
		client.tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(traceExporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(client.tracerProvider)
	}

	metricExporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(cfg.Grafana.OTLPEndpoint))
	if err != nil {
		log.Printf("Warning: failed to create OTLP metric exporter: %v", err)
	} else {
		client.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(15*time.Second))),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(client.meterProvider)

		if err := runtime.Start(runtime.WithMeterProvider(client.meterProvider)); err != nil {
			log.Printf("Warning: failed to start runtime metrics: %v", err)
		}
	}

	return client
}

func (t *TelemetryClient) Shutdown(ctx context.Context) error {
	var errs []error
	if t.tracerProvider != nil {
		errs = append(errs, t.tracerProvider.Shutdown(ctx))
	}
	if t.meterProvider != nil {
		errs = append(errs, t.meterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
