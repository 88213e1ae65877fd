package observability

import "errors"

// ErrNilConfig is returned when Validate is called on a nil Config pointer.
var ErrNilConfig = errors.New("observability: config is nil")

// ErrMissingServiceName is returned when telemetry is enabled but no service name is configured.
var ErrMissingServiceName = errors.New("observability: service name is required when telemetry is enabled")

// ErrInvalidProtocol is returned when the OTLP protocol is not "http" or "grpc".
var ErrInvalidProtocol = errors.New("observability: protocol must be either 'http' or 'grpc'")

// ErrInvalidEndpointFormat is returned when the endpoint format doesn't match the protocol.
// gRPC endpoints must NOT include a scheme (use "host:port"); HTTP endpoints must.
var ErrInvalidEndpointFormat = errors.New("observability: invalid endpoint format for protocol")
