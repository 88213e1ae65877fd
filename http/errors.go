package http

import (
	"errors"
	"fmt"
	"time"
)

// ClientError represents the categories of errors produced by a pending request
type ClientError interface {
	error
	Type() ErrorType
}

// ErrorType defines the category of client error
type ErrorType string

const (
	ConfigurationError  ErrorType = "configuration"
	BodyEncodingError   ErrorType = "body"
	MockResolutionError ErrorType = "mock"
	NetworkError        ErrorType = "network"
	TimeoutError        ErrorType = "timeout"
	URLError            ErrorType = "url"
)

// Sentinels matched by errors.Is against the concrete client errors
var (
	ErrInvalidHeaderFormat      = errors.New("invalid header format")
	ErrInvalidOption            = errors.New("invalid option")
	ErrEmptyRequestBody         = errors.New("empty request body")
	ErrInvalidRequestBodyFormat = errors.New("invalid request body format")
	ErrMissingMockedResponse    = errors.New("missing mocked response")
	ErrInvalidURL               = errors.New("invalid url")
)

// Messages shared with callers that assert on error text
const (
	msgInvalidHeaderFormat = "Header options must be an object."
	msgEmptyRequestBody    = "Request body has no data."
	msgMissingMock         = "Failed to fetch mocked response"
	msgTimeoutAbort        = "The operation was aborted due to timeout."
)

// configurationError signals a programming error in the builder chain; it is never retried
type configurationError struct {
	kind    error
	message string
	option  string
}

func (e *configurationError) Error() string {
	return e.message
}

func (e *configurationError) Type() ErrorType {
	return ConfigurationError
}

func (e *configurationError) Is(target error) bool {
	return target == e.kind
}

// Option returns the option key that was rejected, if any.
func (e *configurationError) Option() string {
	return e.option
}

// bodyEncodingError is raised while encoding the pending request body
type bodyEncodingError struct {
	kind    error
	message string
	format  BodyFormat
	wrapped error
}

func (e *bodyEncodingError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *bodyEncodingError) Type() ErrorType {
	return BodyEncodingError
}

func (e *bodyEncodingError) Is(target error) bool {
	return target == e.kind
}

func (e *bodyEncodingError) Unwrap() error {
	return e.wrapped
}

// Format returns the body format that failed to encode.
func (e *bodyEncodingError) Format() BodyFormat {
	return e.format
}

// mockResolutionError is a not-found error raised when no mocked pattern matches a URL
type mockResolutionError struct {
	url string
}

func (e *mockResolutionError) Error() string {
	return msgMissingMock
}

func (e *mockResolutionError) Type() ErrorType {
	return MockResolutionError
}

func (e *mockResolutionError) Is(target error) bool {
	return target == ErrMissingMockedResponse
}

// URL returns the request URL that had no mocked response.
func (e *mockResolutionError) URL() string {
	return e.url
}

// networkError represents transport-level failures
type networkError struct {
	message string
	wrapped error
}

func (e *networkError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("network error: %s: %v", e.message, e.wrapped)
	}
	return fmt.Sprintf("network error: %s", e.message)
}

func (e *networkError) Type() ErrorType {
	return NetworkError
}

func (e *networkError) Unwrap() error {
	return e.wrapped
}

// timeoutError represents an attempt aborted by its deadline
type timeoutError struct {
	timeout time.Duration
	wrapped error
}

func (e *timeoutError) Error() string {
	return msgTimeoutAbort
}

func (e *timeoutError) Type() ErrorType {
	return TimeoutError
}

func (e *timeoutError) Unwrap() error {
	return e.wrapped
}

// Timeout returns the per-attempt timeout that fired.
func (e *timeoutError) Timeout() time.Duration {
	return e.timeout
}

// urlError is raised when the resolved URL cannot be parsed
type urlError struct {
	url     string
	wrapped error
}

func (e *urlError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("invalid URL %q: %v", e.url, e.wrapped)
	}
	return fmt.Sprintf("invalid URL %q", e.url)
}

func (e *urlError) Type() ErrorType {
	return URLError
}

func (e *urlError) Is(target error) bool {
	return target == ErrInvalidURL
}

func (e *urlError) Unwrap() error {
	return e.wrapped
}

// NewInvalidHeaderFormatError creates the error returned when headers are not an object
func NewInvalidHeaderFormatError() ClientError {
	return &configurationError{kind: ErrInvalidHeaderFormat, message: msgInvalidHeaderFormat, option: "headers"}
}

// NewInvalidOptionError creates the error returned when a known option has the wrong type
func NewInvalidOptionError(option string, value any) ClientError {
	return &configurationError{
		kind:    ErrInvalidOption,
		message: fmt.Sprintf("Option %q does not accept a value of type %T.", option, value),
		option:  option,
	}
}

// NewEmptyRequestBodyError creates the error returned when encoding without a body
func NewEmptyRequestBodyError() ClientError {
	return &bodyEncodingError{kind: ErrEmptyRequestBody, message: msgEmptyRequestBody}
}

// NewInvalidRequestBodyFormatError creates the error returned when a body cannot be encoded as format
func NewInvalidRequestBodyFormatError(format BodyFormat, wrapped error) ClientError {
	return &bodyEncodingError{
		kind:    ErrInvalidRequestBodyFormat,
		message: fmt.Sprintf("Cannot parse a string as %s.", format),
		format:  format,
		wrapped: wrapped,
	}
}

// newUnsupportedBodyError is raised for structured formats given a non-object value
func newUnsupportedBodyError(format BodyFormat, body any) ClientError {
	return &bodyEncodingError{
		kind:    ErrInvalidRequestBodyFormat,
		message: fmt.Sprintf("Cannot parse a value of type %T as %s.", body, format),
		format:  format,
	}
}

// newSerializationError wraps a JSON or multipart writer failure
func newSerializationError(format BodyFormat, wrapped error) ClientError {
	return &bodyEncodingError{
		kind:    ErrInvalidRequestBodyFormat,
		message: fmt.Sprintf("Cannot serialize request body as %s", format),
		format:  format,
		wrapped: wrapped,
	}
}

// NewMissingMockedResponseError creates the not-found error for an unmatched mocked URL
func NewMissingMockedResponseError(url string) ClientError {
	return &mockResolutionError{url: url}
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, wrapped error) ClientError {
	return &networkError{
		message: message,
		wrapped: wrapped,
	}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(timeout time.Duration, wrapped error) ClientError {
	return &timeoutError{
		timeout: timeout,
		wrapped: wrapped,
	}
}

// NewURLError creates a new invalid URL error
func NewURLError(url string, wrapped error) ClientError {
	return &urlError{url: url, wrapped: wrapped}
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errorType ErrorType) bool {
	if err == nil {
		return false
	}
	var clientErr ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type() == errorType
	}
	return false
}

// isFatal reports errors that abort the chain without consuming retry attempts.
func isFatal(err error) bool {
	return IsErrorType(err, ConfigurationError) || IsErrorType(err, URLError)
}
