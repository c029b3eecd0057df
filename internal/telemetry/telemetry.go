package telemetry

import (
	"context"
	"fmt"
	"io"
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

const serviceName = "fitcoach"

func rotating(logDir, name string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(logDir, name),
		MaxSize:    10, // 10 MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}

// InitLogger initializes structured logging with rotation.
// The returned closer flushes the log file.
func InitLogger(logDir string, debug bool) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	logFile := rotating(logDir, "fitcoach.log")

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	// Log only to file; stdout carries the coach's answer
	handler := slog.NewJSONHandler(logFile, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger, logFile, nil
}

// InitTelemetry installs global OpenTelemetry tracer and meter providers.
// Traces go to <logDir>/fitcoach_traces.log and metrics to
// <logDir>/fitcoach_metrics.log. Shutdown flushes pending metrics, so a short
// CLI run still records its request durations.
func InitTelemetry(ctx context.Context, logDir string) (func(), error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	var stages []shutdowner
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Each provider shuts down before the file it writes to.
		for i := len(stages) - 1; i >= 0; i-- {
			if err := stages[i].shutdown(ctx); err != nil {
				slog.Error("failed to shutdown "+stages[i].name, "error", err)
			}
		}
	}

	traceFile := rotating(logDir, "fitcoach_traces.log")
	stages = append(stages, closeFile("trace file", traceFile))
	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(traceFile), stdouttrace.WithPrettyPrint())
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	stages = append(stages, shutdowner{"tracer provider", tp.Shutdown})

	metricsFile := rotating(logDir, "fitcoach_metrics.log")
	stages = append(stages, closeFile("metrics file", metricsFile))
	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(metricsFile), stdoutmetric.WithPrettyPrint())
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(10*time.Second))),
		sdkmetric.WithResource(res),
	)
	stages = append(stages, shutdowner{"meter provider", mp.Shutdown})

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	return cleanup, nil
}

type shutdowner struct {
	name     string
	shutdown func(context.Context) error
}

func closeFile(name string, c io.Closer) shutdowner {
	return shutdowner{name, func(context.Context) error { return c.Close() }}
}
