package commands

import (
	"context"
	"errors"

	"github.com/gaborage/go-fetch/http"
)

// Exit codes for the fetch CLI
const (
	// ExitSuccess indicates the request settled (with a 2xx unless --fail was not given)
	ExitSuccess = 0

	// ExitFailure indicates an unexpected error
	ExitFailure = 1

	// ExitConfigError indicates the configuration could not be loaded
	ExitConfigError = 3

	// ExitNetworkError indicates the request could not be completed
	ExitNetworkError = 4

	// ExitTimeout indicates every attempt timed out
	ExitTimeout = 5

	// ExitHTTPError indicates a non-2xx response with --fail
	ExitHTTPError = 22

	// ExitUsageError indicates invalid CLI usage or request configuration
	ExitUsageError = 64
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func exitWith(code int, err error) error {
	return &ExitError{Code: code, Err: err}
}

// ExitCode maps an error returned by the root command to a process exit code. Errors
// without an exit code come from cobra rejecting the arguments or flags.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitUsageError
}

// requestExitCode classifies a dispatch error.
func requestExitCode(err error) int {
	switch {
	case http.IsErrorType(err, http.TimeoutError):
		return ExitTimeout
	case http.IsErrorType(err, http.NetworkError), errors.Is(err, context.Canceled):
		return ExitNetworkError
	case http.IsErrorType(err, http.ConfigurationError),
		http.IsErrorType(err, http.BodyEncodingError),
		http.IsErrorType(err, http.URLError):
		return ExitUsageError
	default:
		return ExitFailure
	}
}
