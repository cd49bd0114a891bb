// Package telemetry wires the runtime's metrics and logging into
// OpenTelemetry. When no OTLP endpoint is configured, the SDK's own no-op
// providers are used, so instrumenting a call site costs nothing extra at
// the call site itself.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.40.0"
)

const instrumentationName = "github.com/storyflowrt/engine"

// Provider bundles the meter, logger, and instruments the runtime records
// against, plus the shutdown hook a host calls before exit.
type Provider struct {
	Meter  metric.Meter
	Logger *slog.Logger

	NodesEmitted  metric.Int64Counter
	EvalErrors    metric.Int64Counter
	NextNodeTimer metric.Float64Histogram

	shutdown func(context.Context) error
}

// Setup builds a Provider. endpoint is the OTLP gRPC collector address; an
// empty endpoint leaves metrics and traces recorded against the SDK's
// built-in no-op implementations, while logging still flows through slog.
func Setup(ctx context.Context, serviceName, endpoint string) (*Provider, error) {
	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	var shutdowns []func(context.Context) error
	var meterProvider metric.MeterProvider = otel.GetMeterProvider()
	logger := slog.Default()

	if endpoint != "" {
		metricExp, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpoint(endpoint), otlpmetricgrpc.WithInsecure())
		if err != nil {
			return nil, fmt.Errorf("telemetry: build metric exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		)
		meterProvider = mp
		shutdowns = append(shutdowns, mp.Shutdown)

		traceExp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
		if err != nil {
			return nil, fmt.Errorf("telemetry: build trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(traceExp),
		)
		otel.SetTracerProvider(tp)
		shutdowns = append(shutdowns, tp.Shutdown)

		logExp, err := otlploggrpc.New(ctx, otlploggrpc.WithEndpoint(endpoint), otlploggrpc.WithInsecure())
		if err != nil {
			return nil, fmt.Errorf("telemetry: build log exporter: %w", err)
		}
		lp := sdklog.NewLoggerProvider(
			sdklog.WithResource(res),
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
		)
		shutdowns = append(shutdowns, lp.Shutdown)

		logger = slog.New(otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(lp)))
	}

	meter := meterProvider.Meter(instrumentationName)

	nodesEmitted, err := meter.Int64Counter("storyflow.node.emitted",
		metric.WithDescription("count of next_node calls that returned without error"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build node.emitted counter: %w", err)
	}
	evalErrors, err := meter.Int64Counter("storyflow.eval.error",
		metric.WithDescription("count of next_node calls that returned an error"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build eval.error counter: %w", err)
	}
	nextNodeTimer, err := meter.Float64Histogram("storyflow.next_node.duration",
		metric.WithDescription("next_node call latency"), metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build next_node.duration histogram: %w", err)
	}

	return &Provider{
		Meter:         meter,
		Logger:        logger,
		NodesEmitted:  nodesEmitted,
		EvalErrors:    evalErrors,
		NextNodeTimer: nextNodeTimer,
		shutdown: func(ctx context.Context) error {
			for _, fn := range shutdowns {
				if err := fn(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	}, nil
}

// Shutdown flushes and closes every exporter Setup opened. Safe to call on
// a Provider built with no OTLP endpoint (a no-op).
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

// RecordNextNode times fn and records its duration, then adds one to
// EvalErrors when fn returns an error and to NodesEmitted otherwise, whatever
// outcome the step reported. flowID is not attached to any recorded value.
func (p *Provider) RecordNextNode(ctx context.Context, flowID string, fn func() error) error {
	start := time.Now()
	err := fn()
	if p == nil {
		return err
	}
	p.NextNodeTimer.Record(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		p.EvalErrors.Add(ctx, 1)
	} else {
		p.NodesEmitted.Add(ctx, 1)
	}
	return err
}
