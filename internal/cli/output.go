package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // a scenario failed or a bundle did not validate
	ExitCommandError = 2 // bad arguments, unreadable input, database errors
)

// Error codes reported in the "error" object of JSON output.
// E0xx come from the CLI itself; E1xx are bundle validation codes
// (see compiler.Validate).
const (
	ErrCodeGeneric     = "E001"
	ErrCodeScanError   = "E002" // walking a bundle directory failed
	ErrCodeNoFiles     = "E003" // directory holds no .cue files
	ErrCodeLoadFailed  = "E004" // cue/load rejected the instance
	ErrCodeNotFound    = "E005"
	ErrCodeBuildFailed = "E006" // CUE syntax or evaluation error
	ErrCodeWriteFailed = "E007" // a rule or event did not persist
	ErrCodeNoContext   = "E008" // no app, domain or subdomain to apply a change to

	ErrCodeInvalidApp       = "E020"
	ErrCodeInvalidOverride  = "E021" // subdomain value other than "disabled" or "enabled"
	ErrCodeEmptyBundle      = "E022"
	ErrCodeInvalidStructure = "E023"
)

// ExitError carries the process exit code for a failed command.
// main passes it to os.Exit through GetExitCode.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError wrapping err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code carried by err, or ExitFailure for any
// other error.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the JSON envelope every command writes with --format json.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`

	// Session is set by commands that report events of one engine session.
	Session string `json:"session,omitempty"`
}

// CLIError is the error object of a failed CLIResponse.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter writes command results as a JSON envelope or as text.
type OutputFormatter struct {
	Format string
	Writer io.Writer

	// ErrWriter receives verbose diagnostics so they never mix into JSON on
	// Writer. Nil means Writer.
	ErrWriter io.Writer
	Verbose   bool
}

func (f *OutputFormatter) isJSON() bool { return f.Format == "json" }

// Success writes data. Text output prints data with fmt.
func (f *OutputFormatter) Success(data any) error {
	if !f.isJSON() {
		_, err := fmt.Fprintln(f.Writer, data)
		return err
	}
	return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
}

// Error writes an error object. Text output shows details only in verbose
// mode.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
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

// Fail writes an error object and returns an ExitError with exit code exit
// and message "code: message".
func (f *OutputFormatter) Fail(exit int, code, message string, details any) error {
	_ = f.Error(code, message, details)
	return NewExitError(exit, code+": "+message)
}

// VerboseLog writes a diagnostic line when verbose mode is on.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if f.Verbose {
		fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
	}
}

// GetErrWriter returns ErrWriter, or Writer when it is unset.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
