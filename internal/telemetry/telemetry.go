// Package telemetry installs OpenTelemetry trace and metric providers that
// export to rotated files under the log directory.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "aethel"

// Options configures telemetry export.
type Options struct {
	Dir            string
	Version        string
	MetricInterval time.Duration
}

// Init installs global tracer and meter providers. The returned shutdown
// flushes pending data and closes the export files.
func Init(ctx context.Context, opts Options) (func(context.Context) error, error) {
	if opts.Dir == "" {
		opts.Dir = "logs"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.MetricInterval <= 0 {
		opts.MetricInterval = 30 * time.Second
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(opts.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	traceFile := rotated(filepath.Join(opts.Dir, "aethel_traces.log"))
	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(traceFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)

	metricsFile := rotated(filepath.Join(opts.Dir, "aethel_metrics.log"))
	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(metricsFile))
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(opts.MetricInterval))),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	shutdown := func(ctx context.Context) error {
		var errs []error
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
		if err := traceFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("trace file: %w", err))
		}
		if err := metricsFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("metrics file: %w", err))
		}
		if len(errs) > 0 {
			slog.Error("telemetry shutdown", "error", errors.Join(errs...))
		}
		return errors.Join(errs...)
	}
	return shutdown, nil
}

func rotated(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}
