package telemetry

// Config holds configuration for the tracer.
type Config struct {
	// ServiceName is recorded as the service.name resource attribute.
	ServiceName string

	// ServiceVersion is recorded as the service.version resource attribute.
	ServiceVersion string

	// Enabled determines whether tracing is enabled.
	// When false, a noop tracer is used.
	Enabled bool

	// TraceFile receives finished spans as JSON lines. Empty keeps spans
	// in-process only.
	TraceFile string

	// SampleRate is the fraction of traces to sample (0.0 to 1.0).
	SampleRate float64
}

// DefaultConfig returns a disabled tracer configuration.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "hirs-avhrr",
		ServiceVersion: "dev",
		SampleRate:     1.0,
	}
}
