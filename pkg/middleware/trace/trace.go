package trace

import (
	"context"
	"time"

	"github.com/scienceol/seqpanel/pkg/middleware/logger"
	"go.opentelemetry.io/contrib/instrumentation/host"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// StdoutEndpoint routes traces or metrics to stdout instead of a collector.
const StdoutEndpoint = "stdout"

type InitConfig struct {
	ServiceName     string
	Version         string
	TraceEndpoint   string
	MetricEndpoint  string
	TraceProject    string
	TraceInstanceID string
	TraceAK         string
	TraceSK         string
}

var (
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
)

func (c *InitConfig) headers() map[string]string {
	h := map[string]string{}
	if c.TraceProject != "" {
		h["x-trace-project"] = c.TraceProject
	}
	if c.TraceInstanceID != "" {
		h["x-trace-instance"] = c.TraceInstanceID
	}
	if c.TraceAK != "" {
		h["x-trace-ak"] = c.TraceAK
		h["x-trace-sk"] = c.TraceSK
	}
	return h
}

func InitTrace(ctx context.Context, conf *InitConfig) {
	res := resource.NewSchemaless(
		attribute.String("service.name", conf.ServiceName),
		attribute.String("service.version", conf.Version),
		attribute.String("service.project", conf.TraceProject),
	)

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	switch conf.TraceEndpoint {
	case "":
	case StdoutEndpoint:
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			logger.Errorf(ctx, "init stdout trace exporter err: %+v", err)
		} else {
			traceOpts = append(traceOpts, sdktrace.WithBatcher(exp))
		}
	default:
		exp, err := otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(conf.TraceEndpoint),
			otlptracegrpc.WithHeaders(conf.headers()),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
		if err != nil {
			logger.Errorf(ctx, "init otlp trace exporter err: %+v", err)
		} else {
			traceOpts = append(traceOpts, sdktrace.WithBatcher(exp))
		}
	}
	tracerProvider = sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	metricOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	switch conf.MetricEndpoint {
	case "":
	case StdoutEndpoint:
		exp, err := stdoutmetric.New()
		if err != nil {
			logger.Errorf(ctx, "init stdout metric exporter err: %+v", err)
		} else {
			metricOpts = append(metricOpts, sdkmetric.WithReader(
				sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(time.Minute))))
		}
	default:
		exp, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(conf.MetricEndpoint),
			otlpmetricgrpc.WithHeaders(conf.headers()),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			logger.Errorf(ctx, "init otlp metric exporter err: %+v", err)
		} else {
			metricOpts = append(metricOpts, sdkmetric.WithReader(
				sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(15*time.Second))))
		}
	}
	meterProvider = sdkmetric.NewMeterProvider(metricOpts...)
	otel.SetMeterProvider(meterProvider)

	if err := host.Start(host.WithMeterProvider(meterProvider)); err != nil {
		logger.Warnf(ctx, "start host metrics err: %+v", err)
	}
	if err := runtime.Start(runtime.WithMeterProvider(meterProvider),
		runtime.WithMinimumReadMemStatsInterval(10*time.Second)); err != nil {
		logger.Warnf(ctx, "start runtime metrics err: %+v", err)
	}
}

func CloseTrace() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			logger.Errorf(ctx, "shutdown tracer provider err: %+v", err)
		}
	}
	if meterProvider != nil {
		if err := meterProvider.Shutdown(ctx); err != nil {
			logger.Errorf(ctx, "shutdown meter provider err: %+v", err)
		}
	}
}
