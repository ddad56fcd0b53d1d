package ux

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/hirs-avhrr/internal/errors"
)

// ErrorWithSuggestion wraps an error with helpful recovery suggestions
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface
func (e *ErrorWithSuggestion) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%v\n\n💡 Suggestion: %s", e.Err, e.Suggestion)
	}
	return e.Err.Error()
}

// Unwrap provides access to the underlying error
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// NewErrorWithSuggestion creates a new error with a suggestion
func NewErrorWithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

var kindSuggestions = map[errors.Kind]string{
	errors.KindNotReady: "The input is catalogued but not on disk yet. " +
		"Rerun later, or use 'hirs-avhrr submit' which retries inputs that are not ready",
	errors.KindNotFound: "Check input_sources.input_data and executable.root in the configuration " +
		"and that the data lists cover the requested granule",
	errors.KindSubprocessFailure: "Inspect the run manifest in batch.manifest_dir for the command line and stderr tail",
	errors.KindOutputMissing: "The collocation executable exited 0 without writing its output. " +
		"Check its stderr in the run manifest",
	errors.KindParseFailure: "Granule names must look like NSS.HIRX.M1.D17182.S0032.E0215.B2455253.SV",
	errors.KindConfig:       "Run 'hirs-avhrr config validate' to check the configuration file",
}

// EnhanceError adds a recovery suggestion based on the error kind, or on
// the message for errors without one.
func EnhanceError(err error) error {
	if err == nil {
		return nil
	}

	if pe, ok := errors.As(err); ok {
		if len(pe.Suggestions) > 0 {
			return err
		}
		if s, ok := kindSuggestions[pe.Kind]; ok {
			return NewErrorWithSuggestion(err, s)
		}
	}

	errMsg := err.Error()
	switch {
	case strings.Contains(errMsg, "permission denied"):
		return NewErrorWithSuggestion(err,
			"Check file permissions on the work, checkpoint and log directories")
	case strings.Contains(errMsg, "no space left on device"):
		return NewErrorWithSuggestion(err,
			"Free space in work_dir or enable compression in the configuration")
	case strings.Contains(errMsg, "unknown satellite"):
		return NewErrorWithSuggestion(err,
			"Use a satellite name such as noaa-19 or metop-b")
	}
	return err
}

// FormatError provides consistent error formatting with context
func FormatError(err error, context string) error {
	if err == nil {
		return nil
	}

	enhanced := EnhanceError(err)
	if context != "" {
		return fmt.Errorf("%s: %w", context, enhanced)
	}
	return enhanced
}
