package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/nostrcal/internal/fault"
	"github.com/roach88/nostrcal/internal/session"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The operation ran and failed (rejected publish, invalid booking, non-deterministic replay)
	ExitCommandError = 2 // Command error (bad flags, missing key, no relay reachable)
)

// Error codes used in CLI responses for failures that are not faults.
const (
	ErrCodeGeneric  = "E_GENERIC"
	ErrCodeNotFound = "E_NOT_FOUND"
	ErrCodeConfig   = "E_CONFIG"
	ErrCodeUsage    = "E_USAGE"
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// classify maps an error onto a response code and an exit code.
func classify(err error) (string, int) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && !hasFault(err) {
		return ErrCodeGeneric, exitErr.Code
	}
	var f *fault.Error
	if errors.As(err, &f) {
		if f.Code == fault.CodeConnectionFailure || f.Code == fault.CodeSigningFailure {
			return string(f.Code), ExitCommandError
		}
		return string(f.Code), ExitFailure
	}
	if errors.Is(err, session.ErrNotFound) {
		return ErrCodeNotFound, ExitFailure
	}
	return ErrCodeGeneric, ExitFailure
}

func hasFault(err error) bool {
	var f *fault.Error
	return errors.As(err, &f)
}

// Texter renders a result for text output.
type Texter interface {
	Text(w io.Writer)
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // fault code or E_* code
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{Status: "ok", Data: data})
	}
	if t, ok := data.(Texter); ok {
		t.Text(f.Writer)
		return nil
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err and returns the matching ExitError. Publish rejections
// carry the per-relay reasons as details.
func (f *OutputFormatter) Fail(err error) error {
	code, exit := classify(err)
	var details any
	var fe *fault.Error
	if errors.As(err, &fe) && len(fe.Reasons) > 0 {
		details = fe.Reasons
	}
	_ = f.Error(code, err.Error(), details)
	return WrapExitError(exit, code, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
