// Package telemetry sets up OpenTelemetry tracing for the CLI.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/redmiedge/sensordash/internal/utils"
)

// Exporter names accepted by SetupTracer.
const (
	ExporterConsole = "console"
	ExporterFile    = "file"
)

// Config selects where spans go.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Exporter       string
	// FilePath is the JSON output for the file exporter.
	FilePath   string
	SampleRate float64
}

// SetupTracer installs a global tracer provider and returns its shutdown function.
func SetupTracer(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	var (
		w      io.Writer
		closer io.Closer
	)
	switch cfg.Exporter {
	case "", ExporterConsole:
		w = os.Stderr
	case ExporterFile:
		if cfg.FilePath == "" {
			return nil, utils.NewValidationError("trace_endpoint", "file exporter needs a file path")
		}
		f, err := utils.OpenLogFile(cfg.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open trace file: %w", err)
		}
		w, closer = f, f
	default:
		return nil, utils.NewValidationError("trace_exporter", fmt.Sprintf("unknown exporter %q, use console or file", cfg.Exporter))
	}

	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	rate := cfg.SampleRate
	if rate <= 0 || rate > 1 {
		rate = 1
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if closer != nil {
			err = errors.Join(err, closer.Close())
		}
		return err
	}, nil
}
