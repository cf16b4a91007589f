package cli

import (
	"errors"
	"fmt"

	"github.com/mmynk/receiptsplit/internal/client"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The server refused or the call failed
	ExitCommandError = 2 // Bad arguments, unreadable files, no identity
	ExitLimitReached = 3 // A session quota was hit
)

// ExitError is an error carrying the process exit code.
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

// NewExitError creates an ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure if the error is not an ExitError.
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

// callError turns a failed read into an ExitError.
func callError(action string, err error) error {
	var ce *client.Error
	if errors.As(err, &ce) {
		return resultError(action, client.Result{Outcome: ce.Outcome, Err: ce.Err})
	}
	return WrapExitError(ExitFailure, action, err)
}

// resultError turns a non-OK mutation result into an ExitError.
func resultError(action string, res client.Result) error {
	switch res.Outcome {
	case client.OK:
		return nil
	case client.LimitReached:
		return WrapExitError(ExitLimitReached, action+": limit reached", res.Err)
	case client.Invalid:
		return WrapExitError(ExitCommandError, action+": invalid request", res.Err)
	default:
		return WrapExitError(ExitFailure, fmt.Sprintf("%s: %s", action, res.Outcome), res.Err)
	}
}
