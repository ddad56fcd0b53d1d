// Package telemetry traces submissions with OpenTelemetry. Spans cover a
// submitted interval, each collocation task and each subprocess, and are
// written to a JSON-lines file when one is configured.
package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	// globalProvider holds the current tracer provider
	globalProvider trace.TracerProvider = noop.NewTracerProvider()
	// providerMu protects access to global provider state
	providerMu sync.RWMutex
)

// createResource describes this process to trace consumers.
func createResource(cfg Config) *resource.Resource {
	return resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)
}

// InitProvider installs the tracer provider described by cfg and returns its
// shutdown func, which flushes and closes the trace file.
func InitProvider(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	providerMu.Lock()
	defer providerMu.Unlock()

	if !cfg.Enabled {
		globalProvider = noop.NewTracerProvider()
		otel.SetTracerProvider(globalProvider)
		return func(context.Context) error { return nil }, nil
	}

	rate := cfg.SampleRate
	if rate < 0 || rate > 1 {
		return nil, fmt.Errorf("sample rate %v outside [0, 1]", rate)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(createResource(cfg)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))),
	}
	if cfg.TraceFile != "" {
		exporter, err := NewFileExporter(cfg.TraceFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	globalProvider = tp
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// GetTracerProvider returns the installed provider, a noop one by default.
func GetTracerProvider() trace.TracerProvider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return globalProvider
}

// SetTracerProvider replaces the provider. Tests use it with an in-memory
// exporter.
func SetTracerProvider(tp trace.TracerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	globalProvider = tp
}
