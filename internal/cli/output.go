package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Process exit codes. CI pipelines gate on these, so a command that ran
// correctly but found a problem exits 1, and a command that could not run
// at all exits 2.
const (
	ExitSuccess = 0
	// ExitFailure: report blocks release (a P0 scenario is still
	// pending, or a breaking impact has no migration note), replay found
	// history that disagrees with the entries, a run file assertion
	// failed, or validate found a broken model.
	ExitFailure = 1
	// ExitCommandError: bad flags or paths, no ledger database, no run
	// generated yet, an unknown scenario, or the ledger store could not
	// be read or written.
	ExitCommandError = 2
)

// ExitError carries the process exit code of a failed command up to main.
type ExitError struct {
	Code    int
	Message string
	Err     error // optional cause
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError caused by err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode picks the exit code for err. Errors that are not an
// ExitError exit 1.
func GetExitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &exitErr):
		return exitErr.Code
	default:
		return ExitFailure
	}
}

// OutputFormatter writes command results as text or as a CLIResponse
// envelope. Diagnostics go to ErrWriter so stdout stays one JSON document.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // defaults to Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope of every bdt command.
//
// Status is "ok" or "error". A failed check (a blocking report, a replay
// mismatch, failing run files, an invalid model) sets both Data and Error
// so a pipeline can read the result that failed. A command error sets
// Error only.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error part of a CLIResponse. Code is one of the E0xx
// constants in errors.go; Details holds engine error details such as the
// scenario id or the quota limit.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON reports whether the formatter emits JSON.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success writes data. Text output relies on data's String method.
func (f *OutputFormatter) Success(data any) error {
	if !f.JSON() {
		fmt.Fprintln(f.Writer, data)
		return nil
	}
	return f.encode(CLIResponse{Status: "ok", Data: data})
}

// Failure reports a check that failed and returns the exit-1 error. Text
// output is left to the caller, which has already printed data.
func (f *OutputFormatter) Failure(code, message string, data any) error {
	if f.JSON() {
		resp := CLIResponse{Status: "error", Data: data, Error: &CLIError{Code: code, Message: message}}
		if err := f.encode(resp); err != nil {
			return err
		}
	}
	return NewExitError(ExitFailure, message)
}

// Error writes a command error. Details are printed in text mode only
// when verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.JSON() {
		return f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	// context keys and reasons may hold <, > and &
	enc.SetEscapeHTML(false)
	return enc.Encode(resp)
}

// VerboseLog writes a progress line to the diagnostic writer when verbose.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if f.Verbose {
		fmt.Fprintf(f.errWriter(), format+"\n", args...)
	}
}

func (f *OutputFormatter) errWriter() io.Writer {
	if f.ErrWriter == nil {
		return f.Writer
	}
	return f.ErrWriter
}
