package ux

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	pipeerrors "github.com/felixgeelhaar/hirs-avhrr/internal/errors"
)

func TestNewErrorWithSuggestion(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		suggestion string
		wantNil    bool
	}{
		{
			name:       "nil error returns nil",
			err:        nil,
			suggestion: "some suggestion",
			wantNil:    true,
		},
		{
			name:       "error with suggestion",
			err:        errors.New("something failed"),
			suggestion: "try this fix",
			wantNil:    false,
		},
		{
			name:       "error without suggestion",
			err:        errors.New("something failed"),
			suggestion: "",
			wantNil:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewErrorWithSuggestion(tt.err, tt.suggestion)
			if tt.wantNil {
				if result != nil {
					t.Errorf("NewErrorWithSuggestion() = %v, want nil", result)
				}
				return
			}

			if result == nil {
				t.Fatal("NewErrorWithSuggestion() returned nil, want error")
			}

			errMsg := result.Error()
			if !strings.Contains(errMsg, tt.err.Error()) {
				t.Errorf("Error message %q does not contain original error %q", errMsg, tt.err.Error())
			}

			if tt.suggestion != "" && !strings.Contains(errMsg, tt.suggestion) {
				t.Errorf("Error message %q does not contain suggestion %q", errMsg, tt.suggestion)
			}
		})
	}
}

func TestErrorWithSuggestion_Error(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		suggestion string
		wantMsg    string
	}{
		{
			name:       "with suggestion",
			err:        errors.New("test error"),
			suggestion: "do this",
			wantMsg:    "test error\n\n💡 Suggestion: do this",
		},
		{
			name:       "without suggestion",
			err:        errors.New("test error"),
			suggestion: "",
			wantMsg:    "test error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &ErrorWithSuggestion{
				Err:        tt.err,
				Suggestion: tt.suggestion,
			}

			if e.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", e.Error(), tt.wantMsg)
			}
		})
	}
}

func TestErrorWithSuggestion_Unwrap(t *testing.T) {
	origErr := errors.New("original error")
	e := &ErrorWithSuggestion{
		Err:        origErr,
		Suggestion: "some suggestion",
	}

	unwrapped := e.Unwrap()
	if unwrapped != origErr {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, origErr)
	}
}

func TestEnhanceError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantNil        bool
		wantSuggestion string
	}{
		{
			name:    "nil error returns nil",
			err:     nil,
			wantNil: true,
		},
		{
			name:           "parse failure gets naming hint",
			err:            pipeerrors.NewParseError(pipeerrors.ErrCodeParseFilename, "foo.hdf", "too few fields"),
			wantSuggestion: "NSS.HIRX.M1.D17182.S0032.E0215.B2455253.SV",
		},
		{
			name:           "output missing points at manifest",
			err:            pipeerrors.NewOutputMissingError("hirs_avhrr", "out.hdf"),
			wantSuggestion: "run manifest",
		},
		{
			name:           "config error suggests validation",
			err:            fmt.Errorf("load: %w", pipeerrors.NewConfigInvalidError("work_dir", nil)),
			wantSuggestion: "config validate",
		},
		{
			name:           "permission denied",
			err:            errors.New("mkdir /work/x: permission denied"),
			wantSuggestion: "permissions",
		},
		{
			name:           "disk full",
			err:            errors.New("write out.hdf: no space left on device"),
			wantSuggestion: "compression",
		},
		{
			name:           "unknown satellite",
			err:            errors.New("HIR1B input for tiros not found: unknown satellite"),
			wantSuggestion: "metop-b",
		},
		{
			name: "unrecognized error unchanged",
			err:  errors.New("something odd"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := EnhanceError(tt.err)

			if tt.wantNil {
				if result != nil {
					t.Errorf("EnhanceError() = %v, want nil", result)
				}
				return
			}

			if tt.wantSuggestion == "" {
				if result != tt.err {
					t.Errorf("EnhanceError() = %v, want unchanged %v", result, tt.err)
				}
				return
			}

			var ews *ErrorWithSuggestion
			if !errors.As(result, &ews) {
				t.Fatalf("EnhanceError() = %T, want *ErrorWithSuggestion", result)
			}
			if !strings.Contains(ews.Suggestion, tt.wantSuggestion) {
				t.Errorf("suggestion %q does not contain %q", ews.Suggestion, tt.wantSuggestion)
			}
			if !errors.Is(result, tt.err) {
				t.Error("EnhanceError() broke the error chain")
			}
		})
	}
}

func TestEnhanceErrorKeepsOwnSuggestions(t *testing.T) {
	err := pipeerrors.NewNotReadyError("PTMSX", "metop-b", "file missing")
	if got := EnhanceError(err); got != error(err) {
		t.Errorf("EnhanceError() = %v, want the original error", got)
	}
}

func TestFormatError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		context     string
		wantNil     bool
		wantContext bool
	}{
		{
			name:    "nil error returns nil",
			err:     nil,
			context: "some context",
			wantNil: true,
		},
		{
			name:        "error with context",
			err:         errors.New("something failed"),
			context:     "while processing file",
			wantContext: true,
		},
		{
			name:        "error without context",
			err:         errors.New("something failed"),
			context:     "",
			wantContext: false,
		},
		{
			name:        "enhances and adds context",
			err:         errors.New("open /work: permission denied"),
			context:     "preparing work directory",
			wantContext: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatError(tt.err, tt.context)

			if tt.wantNil {
				if result != nil {
					t.Errorf("FormatError() = %v, want nil", result)
				}
				return
			}

			if result == nil {
				t.Fatal("FormatError() returned nil, want error")
			}

			errMsg := result.Error()

			if tt.wantContext && tt.context != "" {
				if !strings.Contains(errMsg, tt.context) {
					t.Errorf("Formatted error %q does not contain context %q", errMsg, tt.context)
				}
			}

			// Should still contain original error message
			if !strings.Contains(errMsg, tt.err.Error()) {
				t.Errorf("Formatted error %q does not contain original error %q", errMsg, tt.err.Error())
			}
		})
	}
}

func TestEnhanceError_PreservesErrorChain(t *testing.T) {
	// Create a wrapped error chain
	baseErr := errors.New("base error")
	wrappedErr := NewErrorWithSuggestion(baseErr, "first suggestion")

	// Enhance it again
	enhanced := EnhanceError(wrappedErr)

	// Should be able to unwrap to get original
	if enhanced == nil {
		t.Fatal("EnhanceError() returned nil")
	}

	// EnhanceError returns the original error if it doesn't match any patterns
	// So for an unrecognized ErrorWithSuggestion, it should return it unchanged
	if enhanced.Error() != wrappedErr.Error() {
		t.Errorf("EnhanceError() changed error message: got %q, want %q", enhanced.Error(), wrappedErr.Error())
	}
}
