package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes. A command that ran and found something wrong (an invalid
// functor, drift, a failed scenario, an id that resolves nowhere) exits with
// ExitFailure; one that could not run at all exits with ExitCommandError.
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitCommandError = 2
)

// ExitError is returned by a command to choose the process exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error // optional cause
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

// WrapExitError creates an ExitError around err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code carried by err, or ExitFailure when err
// is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Envelope is the single document a command writes with --format json.
// Checks that fail still carry their Data, so callers see the report that
// caused the failure.
type Envelope struct {
	Status string   `json:"status"` // "ok" or "error"
	Data   any      `json:"data,omitempty"`
	Error  *Problem `json:"error,omitempty"`
}

// Problem is the error member of an Envelope.
type Problem struct {
	Code    string `json:"code"` // E001.., E101.., E201..
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// String is the text form of a problem.
func (p *Problem) String() string {
	return fmt.Sprintf("Error [%s]: %s", p.Code, p.Message)
}

// OutputFormatter writes command output as text or as one Envelope.
// Diagnostics go to ErrWriter so they never mix with an Envelope.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // defaults to Writer
	Verbose   bool
}

// IsJSON reports whether output is an Envelope.
func (f *OutputFormatter) IsJSON() bool {
	return f.Format == "json"
}

func (f *OutputFormatter) envelope(data any, p *Problem) error {
	env := Envelope{Status: "ok", Data: data, Error: p}
	if p != nil {
		env.Status = "error"
	}
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(env)
}

// Result writes a successful result. Text output is drawn by render, or
// printed with fmt when render is nil.
func (f *OutputFormatter) Result(data any, render func(io.Writer)) error {
	if f.IsJSON() {
		return f.envelope(data, nil)
	}
	if render == nil {
		fmt.Fprintln(f.Writer, data)
		return nil
	}
	render(f.Writer)
	return nil
}

// Outcome writes the Envelope of a check: data always, and p when the
// check failed. Text output is left to the caller.
func (f *OutputFormatter) Outcome(data any, p *Problem) error {
	if !f.IsJSON() {
		return nil
	}
	return f.envelope(data, p)
}

// Problem reports p with no data.
func (f *OutputFormatter) Problem(p *Problem) error {
	if f.IsJSON() {
		return f.envelope(nil, p)
	}
	fmt.Fprintln(f.Writer, p)
	if f.Verbose && p.Details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", p.Details)
	}
	return nil
}

// Fail reports a problem that stopped the command and returns the matching
// ExitError.
func (f *OutputFormatter) Fail(exitCode int, code, message string, err error) error {
	detail := message
	if err != nil {
		detail = fmt.Sprintf("%s: %v", message, err)
	}
	_ = f.Problem(&Problem{Code: code, Message: detail})
	return WrapExitError(exitCode, message, err)
}

// Debugf writes a diagnostic line when verbose.
func (f *OutputFormatter) Debugf(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
