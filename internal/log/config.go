package log

import (
	"io"
	"os"
	"strings"
)

const (
	EnvLogLevel  = "HIRS_AVHRR_LOG_LEVEL"
	EnvLogFormat = "HIRS_AVHRR_LOG_FORMAT"
)

// Format represents the output format for logs
type Format int

const (
	// FormatJSON outputs logs in JSON format
	FormatJSON Format = iota
	// FormatText outputs logs in human-readable text format
	FormatText
)

// String returns the string representation of the format
func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	default:
		return "json"
	}
}

// ParseFormat parses a string into a Format
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "console":
		return FormatText
	default:
		return FormatJSON
	}
}

// Output represents where logs should be written
type Output struct {
	writer io.Writer
}

// Writer returns the underlying io.Writer
func (o Output) Writer() io.Writer {
	if o.writer == nil {
		return os.Stderr
	}
	return o.writer
}

// NewOutput creates an Output from an io.Writer
func NewOutput(w io.Writer) Output {
	return Output{writer: w}
}

// OutputStderr creates an Output that writes to stderr
func OutputStderr() Output {
	return Output{writer: os.Stderr}
}

// OutputDiscard creates an Output that drops everything
func OutputDiscard() Output {
	return Output{writer: io.Discard}
}

// Config holds configuration for the logger
type Config struct {
	// Level is the minimum log level to output
	Level Level

	// Format is the output format (JSON or Text)
	Format Format

	// Output is where logs should be written
	Output Output

	// AddSource includes source file and line number in logs
	AddSource bool

	// ServiceName is attached to every record when set
	ServiceName string
}

// DefaultConfig logs at INFO level in text format to stderr, leaving stdout
// for command output.
func DefaultConfig() Config {
	return Config{
		Level:       LevelInfo,
		Format:      FormatText,
		Output:      OutputStderr(),
		ServiceName: "hirs-avhrr",
	}
}

// FromEnv applies HIRS_AVHRR_LOG_* overrides on top of cfg.
func FromEnv(cfg Config) Config {
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Level = ParseLevel(v)
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Format = ParseFormat(v)
	}
	return cfg
}
