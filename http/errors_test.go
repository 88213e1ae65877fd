package http

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClientErrorTypes(t *testing.T) {
	tests := []struct {
		name     string
		err      ClientError
		wantType ErrorType
		sentinel error
		message  string
	}{
		{
			name:     "invalid header format",
			err:      NewInvalidHeaderFormatError(),
			wantType: ConfigurationError,
			sentinel: ErrInvalidHeaderFormat,
			message:  "Header options must be an object.",
		},
		{
			name:     "invalid option",
			err:      NewInvalidOptionError("keepalive", "yes"),
			wantType: ConfigurationError,
			sentinel: ErrInvalidOption,
			message:  `Option "keepalive" does not accept a value of type string.`,
		},
		{
			name:     "empty body",
			err:      NewEmptyRequestBodyError(),
			wantType: BodyEncodingError,
			sentinel: ErrEmptyRequestBody,
			message:  "Request body has no data.",
		},
		{
			name:     "string as form data",
			err:      NewInvalidRequestBodyFormatError(FormatFormData, nil),
			wantType: BodyEncodingError,
			sentinel: ErrInvalidRequestBodyFormat,
			message:  "Cannot parse a string as FormData.",
		},
		{
			name:     "missing mock",
			err:      NewMissingMockedResponseError("https://api.local/x/"),
			wantType: MockResolutionError,
			sentinel: ErrMissingMockedResponse,
			message:  "Failed to fetch mocked response",
		},
		{
			name:     "invalid url",
			err:      NewURLError("nope", nil),
			wantType: URLError,
			sentinel: ErrInvalidURL,
			message:  `invalid URL "nope"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type())
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.Equal(t, tt.message, tt.err.Error())
			assert.True(t, IsErrorType(tt.err, tt.wantType))
		})
	}
}

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError(50*time.Millisecond, context.DeadlineExceeded)

	assert.Equal(t, "The operation was aborted due to timeout.", err.Error())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var timeoutErr interface{ Timeout() time.Duration }
	assert.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, 50*time.Millisecond, timeoutErr.Timeout())
}

func TestNetworkErrorUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewNetworkError("request execution failed", cause)

	assert.Equal(t, "network error: request execution failed: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "network error: dial", NewNetworkError("dial", nil).Error())
}

func TestIsErrorTypeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("dispatch: %w", NewTimeoutError(time.Second, nil))

	assert.True(t, IsErrorType(wrapped, TimeoutError))
	assert.False(t, IsErrorType(wrapped, NetworkError))
	assert.False(t, IsErrorType(nil, TimeoutError))
	assert.False(t, IsErrorType(errors.New("plain"), NetworkError))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, isFatal(NewInvalidHeaderFormatError()))
	assert.True(t, isFatal(NewURLError("x", nil)))
	assert.False(t, isFatal(NewNetworkError("x", nil)))
	assert.False(t, isFatal(NewTimeoutError(time.Second, nil)))
	assert.False(t, isFatal(NewEmptyRequestBodyError()))
}
