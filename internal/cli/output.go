package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Every scenario ran and every capture passed
	ExitFailure      = 1 // A capture exceeded its threshold or a scenario failed
	ExitCommandError = 2 // Bad flags, unreadable scenarios, browser or ledger setup failures
)

// Error codes carried in JSON responses.
const (
	CodeInvalidScenario = "E_INVALID_SCENARIO"
	CodeRunFailed       = "E_RUN_FAILED"
	CodeLedger          = "E_LEDGER"
)

// ExitError carries the process exit code a command failure maps to.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	Message string // Shown to the user
	Err     error  // Cause, optional
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

// NewExitError creates an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code to err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps err to a process exit code. Errors that are not an
// ExitError (cobra flag errors, for instance) count as command errors.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// OutputFormatter writes command results as text or JSON.
type OutputFormatter struct {
	Format  string
	Writer  io.Writer
	Verbose bool
}

// JSON reports whether the formatter emits JSON.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// CLIResponse is the envelope every JSON response uses.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // command payload
	Error  *CLIError `json:"error,omitempty"` // set when Status is "error"
}

// CLIError describes a failed command in a JSON response.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Respond writes data as an ok response, or as an error response with
// data attached when cliErr is non-nil. Text mode is handled by callers.
func (f *OutputFormatter) Respond(data any, cliErr *CLIError) error {
	resp := CLIResponse{Status: "ok", Data: data}
	if cliErr != nil {
		resp.Status = "error"
		resp.Error = cliErr
	}

	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(resp)
}

// Fail reports a command error in the configured format and returns the
// matching ExitError.
func (f *OutputFormatter) Fail(exitCode int, code, message string, err error) error {
	if f.JSON() {
		cliErr := &CLIError{Code: code, Message: message}
		if err != nil {
			cliErr.Details = err.Error()
		}
		_ = f.Respond(nil, cliErr)
	} else {
		fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
		if err != nil {
			fmt.Fprintf(f.Writer, "  %v\n", err)
		}
	}
	return WrapExitError(exitCode, message, err)
}
