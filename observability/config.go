package observability

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	// EndpointStdout writes telemetry as JSON to Config.Writer instead of an OTLP collector.
	EndpointStdout = "stdout"

	// ProtocolHTTP and ProtocolGRPC select the OTLP transport.
	ProtocolHTTP = "http"
	ProtocolGRPC = "grpc"

	// DefaultServiceName identifies the client in exported resources.
	DefaultServiceName = "fetch"

	// DefaultMetricsInterval is how often metrics are exported while the process runs.
	DefaultMetricsInterval = 10 * time.Second
)

// Config configures the telemetry provider.
type Config struct {
	// Enabled turns exporting on. A disabled config yields a no-op provider.
	Enabled bool

	ServiceName    string
	ServiceVersion string

	// Endpoint is EndpointStdout or an OTLP collector address: "host:port" for gRPC,
	// a URL for HTTP.
	Endpoint string
	// Protocol is ProtocolHTTP or ProtocolGRPC. Ignored for stdout.
	Protocol string
	// Insecure disables TLS towards the collector.
	Insecure bool
	// Headers are sent with every OTLP export, e.g. for authentication.
	Headers map[string]string

	// MetricsInterval is the periodic export interval. Pending metrics are always
	// exported on shutdown.
	MetricsInterval time.Duration

	// Writer receives stdout spans and metrics as JSON. Defaults to stderr so that response
	// bodies written to stdout stay machine readable.
	Writer io.Writer

	// Pretty indents the exported JSON.
	Pretty bool
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.Endpoint == "" {
		c.Endpoint = EndpointStdout
	}
	if c.Protocol == "" {
		c.Protocol = ProtocolHTTP
	}
	if c.MetricsInterval <= 0 {
		c.MetricsInterval = DefaultMetricsInterval
	}
	if c.Writer == nil {
		c.Writer = os.Stderr
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if !c.Enabled {
		return nil
	}
	if c.ServiceName == "" {
		return ErrMissingServiceName
	}
	if c.Endpoint == "" || c.Endpoint == EndpointStdout {
		return nil
	}

	switch c.Protocol {
	case ProtocolHTTP:
		if !strings.HasPrefix(c.Endpoint, "http://") && !strings.HasPrefix(c.Endpoint, "https://") {
			return fmt.Errorf("%w: http endpoint %q needs an http:// or https:// scheme", ErrInvalidEndpointFormat, c.Endpoint)
		}
	case ProtocolGRPC:
		if strings.Contains(c.Endpoint, "://") {
			return fmt.Errorf("%w: grpc endpoint %q must be host:port", ErrInvalidEndpointFormat, c.Endpoint)
		}
	default:
		return fmt.Errorf("protocol '%s': %w", c.Protocol, ErrInvalidProtocol)
	}
	return nil
}
