package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Input errors (INPUT-001 to INPUT-099)
	ErrCodeInputNotReady ErrorCode = "INPUT-001"
	ErrCodeInputNotFound ErrorCode = "INPUT-002"

	// Filename errors (PARSE-001 to PARSE-099)
	ErrCodeParseFilename  ErrorCode = "PARSE-001"
	ErrCodeParseTimestamp ErrorCode = "PARSE-002"
	ErrCodeParseInterval  ErrorCode = "PARSE-003"

	// Execution errors (EXEC-001 to EXEC-099)
	ErrCodeExecFailed        ErrorCode = "EXEC-001"
	ErrCodeExecOutputMissing ErrorCode = "EXEC-002"
	ErrCodeExecNotFound      ErrorCode = "EXEC-003"
	ErrCodeExecStartFailed   ErrorCode = "EXEC-004"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigNotFound ErrorCode = "CONFIG-001"
	ErrCodeConfigInvalid  ErrorCode = "CONFIG-002"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileReadFailed  ErrorCode = "IO-001"
	ErrCodeFileWriteFailed ErrorCode = "IO-002"
	ErrCodeDirectoryFailed ErrorCode = "IO-003"
)

// Kind classifies a failure so callers can branch on it without inspecting
// messages.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNotReady means a required input is not available yet; the
	// scheduler may retry later.
	KindNotReady
	// KindNotFound means a required input or executable is permanently absent.
	KindNotFound
	// KindSubprocessFailure means the collocation executable exited non-zero.
	KindSubprocessFailure
	// KindOutputMissing means the executable exited zero without producing
	// its output file.
	KindOutputMissing
	// KindParseFailure means a granule file name does not follow the naming
	// convention.
	KindParseFailure
	// KindConfig covers invalid or unreadable configuration.
	KindConfig
	// KindIO covers local filesystem failures.
	KindIO
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindNotReady:
		return "not_ready"
	case KindNotFound:
		return "not_found"
	case KindSubprocessFailure:
		return "subprocess_failure"
	case KindOutputMissing:
		return "output_missing"
	case KindParseFailure:
		return "parse_failure"
	case KindConfig:
		return "config"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// PipelineError is a classified error carrying a code, optional subprocess
// details and operator suggestions.
type PipelineError struct {
	Code        ErrorCode
	Kind        Kind
	Message     string
	Suggestions []string
	Cause       error

	// Set for KindSubprocessFailure.
	ExitCode int
	Command  string
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// New creates a new PipelineError
func New(code ErrorCode, kind Kind, message string) *PipelineError {
	return &PipelineError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// Wrap creates a new PipelineError wrapping an existing error
func Wrap(code ErrorCode, kind Kind, message string, cause error) *PipelineError {
	return &PipelineError{
		Code:    code,
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *PipelineError) WithSuggestion(suggestion string) *PipelineError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// As finds the first PipelineError in err's chain.
func As(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// KindOf returns the kind of the first PipelineError in err's chain, or
// KindUnknown.
func KindOf(err error) Kind {
	if pe, ok := As(err); ok {
		return pe.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether a later attempt could succeed without operator
// action. Only missing-but-expected inputs qualify.
func IsRetryable(err error) bool {
	return KindOf(err) == KindNotReady
}

// NewNotReadyError reports an input that is catalogued but not yet usable.
func NewNotReadyError(fileType, satellite, detail string) *PipelineError {
	return New(ErrCodeInputNotReady, KindNotReady,
		fmt.Sprintf("%s input for %s not ready: %s", fileType, satellite, detail)).
		WithSuggestion("Retry once the upstream product has been delivered")
}

// NewNotFoundError reports an input with no catalog entry.
func NewNotFoundError(fileType, satellite, detail string) *PipelineError {
	return New(ErrCodeInputNotFound, KindNotFound,
		fmt.Sprintf("%s input for %s not found: %s", fileType, satellite, detail)).
		WithSuggestion(fmt.Sprintf("Check the %s data list in input_sources.input_data", fileType))
}

// NewParseError reports a granule file name that does not follow the
// NSS.<instr>.<sat>.D<yy><doy>.S<hhmm>.E<hhmm> convention.
func NewParseError(code ErrorCode, name, detail string) *PipelineError {
	return New(code, KindParseFailure, fmt.Sprintf("cannot parse granule name %q: %s", name, detail))
}

// NewSubprocessError reports a non-zero exit from the collocation executable.
func NewSubprocessError(executable, command string, exitCode int, cause error) *PipelineError {
	e := Wrap(ErrCodeExecFailed, KindSubprocessFailure,
		fmt.Sprintf("%s exited with code %d", executable, exitCode), cause)
	e.ExitCode = exitCode
	e.Command = command
	return e.WithSuggestion("Inspect the captured stderr in the run manifest")
}

// NewOutputMissingError reports a zero exit without the expected output.
func NewOutputMissingError(executable, output string) *PipelineError {
	return New(ErrCodeExecOutputMissing, KindOutputMissing,
		fmt.Sprintf("%s exited successfully but produced no output %s", executable, output))
}

// NewExecutableNotFoundError reports a missing collocation executable.
func NewExecutableNotFoundError(path string, cause error) *PipelineError {
	return Wrap(ErrCodeExecNotFound, KindNotFound,
		fmt.Sprintf("collocation executable not found: %s", path), cause).
		WithSuggestion("Check executable.root and the collo_version in the configuration")
}

// NewConfigInvalidError reports a configuration validation failure.
func NewConfigInvalidError(details string, cause error) *PipelineError {
	return Wrap(ErrCodeConfigInvalid, KindConfig, fmt.Sprintf("invalid configuration: %s", details), cause)
}
