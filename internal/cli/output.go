package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The work ran and failed (scenarios, handlers, deliveries)
	ExitCommandError = 2 // The work could not run (bad input, unreadable database, etc.)
)

// ErrorCode classifies a failed command in JSON output.
type ErrorCode string

const (
	CodeConfig     ErrorCode = "E_CONFIG"
	CodeInput      ErrorCode = "E_INPUT"
	CodeDatabase   ErrorCode = "E_DATABASE"
	CodeTransport  ErrorCode = "E_TRANSPORT"
	CodeWrite      ErrorCode = "E_WRITE"
	CodeUnsettled  ErrorCode = "E_HANDLERS_UNSETTLED"
	CodeDelivery   ErrorCode = "E_DELIVERY"
	CodeServer     ErrorCode = "E_SERVER"
	CodeTestFailed ErrorCode = "E_TEST_FAILED"
)

// ExitCode maps the class to the process exit code.
func (c ErrorCode) ExitCode() int {
	switch c {
	case CodeUnsettled, CodeDelivery, CodeServer, CodeTestFailed:
		return ExitFailure
	default:
		return ExitCommandError
	}
}

// CommandError is a classified command failure.
type CommandError struct {
	Code    ErrorCode
	Message string
	Err     error // optional cause
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// fail builds a CommandError. err may be nil.
func fail(code ErrorCode, message string, err error) *CommandError {
	return &CommandError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Errors that are not
// CommandErrors, such as cobra's argument errors, exit with ExitFailure.
func GetExitCode(err error) int {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code.ExitCode()
	}
	return ExitFailure
}

// Response is the JSON envelope every command prints with --format json.
type Response struct {
	Status string         `json:"status"` // "ok" or "error"
	Data   any            `json:"data,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

// ResponseError describes a failure inside a Response.
type ResponseError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// textRenderer is implemented by results with a human-readable form.
type textRenderer interface {
	renderText(w io.Writer, verbose bool)
}

// OutputFormatter prints command results as JSON or text.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; defaults to Writer
	Verbose   bool
}

// Success prints data as a successful result.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.encode(Response{Status: "ok", Data: data})
	}
	f.render(data)
	return nil
}

// Failure prints data alongside cause and returns cause, so commands can
// end with `return f.Failure(result, err)`.
func (f *OutputFormatter) Failure(data any, cause *CommandError) error {
	if f.Format == "json" {
		if err := f.encode(Response{
			Status: "error",
			Data:   data,
			Error:  &ResponseError{Code: cause.Code, Message: cause.Error()},
		}); err != nil {
			return err
		}
		return cause
	}
	if data != nil {
		f.render(data)
	}
	return cause
}

// VerboseLog prints a diagnostic line in verbose mode. It goes to ErrWriter
// so JSON on Writer stays parseable.
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

func (f *OutputFormatter) encode(resp Response) error {
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(resp)
}

func (f *OutputFormatter) render(data any) {
	if r, ok := data.(textRenderer); ok {
		r.renderText(f.Writer, f.Verbose)
		return
	}
	fmt.Fprintln(f.Writer, data)
}

func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
