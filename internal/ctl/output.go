package ctl

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for helixctl.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // A run or verification reported failures
	ExitCommandError = 2 // Bad arguments, unreachable service or a rejected request
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
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
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Response is the JSON envelope of every command.
type Response struct {
	Status string `json:"status"` // "ok" or "failed"
	Data   any    `json:"data,omitempty"`
}

// Printer writes command results as text or JSON.
type Printer struct {
	Format string
	Writer io.Writer
}

// Print writes data. In text mode it calls text instead of encoding data.
func (p *Printer) Print(ok bool, data any, text func(w io.Writer)) error {
	if p.Format == "json" {
		status := "ok"
		if !ok {
			status = "failed"
		}
		enc := json.NewEncoder(p.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(Response{Status: status, Data: data})
	}
	text(p.Writer)
	return nil
}

func requestFailed(what string, err error) error {
	return WrapExitError(ExitCommandError, what+" failed", err)
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "FAILED"
}
