package exitcode

import (
	"os"

	"github.com/felixgeelhaar/hirs-avhrr/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// NotReady indicates an input is catalogued but not yet available
	NotReady = 3

	// NotFound indicates an input or executable is permanently absent
	NotFound = 4

	// SubprocessFailure indicates the collocation executable exited non-zero
	SubprocessFailure = 5

	// OutputMissing indicates the executable exited zero without output
	OutputMissing = 6

	// ParseFailure indicates a granule name did not follow the convention
	ParseFailure = 7

	// ConfigError indicates an unreadable or invalid configuration
	ConfigError = 8

	// Interrupted indicates the run was cancelled by a signal
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error kind
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode maps an error's kind to an exit code
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	switch errors.KindOf(err) {
	case errors.KindNotReady:
		return NotReady
	case errors.KindNotFound:
		return NotFound
	case errors.KindSubprocessFailure:
		return SubprocessFailure
	case errors.KindOutputMissing:
		return OutputMissing
	case errors.KindParseFailure:
		return ParseFailure
	case errors.KindConfig:
		return ConfigError
	default:
		return GeneralError
	}
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case NotReady:
		return "Input not ready"
	case NotFound:
		return "Input or executable not found"
	case SubprocessFailure:
		return "Collocation executable failed"
	case OutputMissing:
		return "Collocation produced no output"
	case ParseFailure:
		return "Granule name parse failure"
	case ConfigError:
		return "Configuration error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
