package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Config represents the client configuration structure.
// It includes sections for the default request settings, retry policy, client-side
// rate limiting, logging preferences, request id propagation and telemetry export.
// The embedded koanf.Koanf instance allows for flexible access to
// additional custom configurations not explicitly defined in the struct.
type Config struct {
	Client    ClientConfig    `koanf:"client" json:"client" yaml:"client" mapstructure:"client"`
	Retry     RetryConfig     `koanf:"retry" json:"retry" yaml:"retry" mapstructure:"retry"`
	RateLimit RateLimitConfig `koanf:"ratelimit" json:"ratelimit" yaml:"ratelimit" mapstructure:"ratelimit"`
	Log       LogConfig       `koanf:"log" json:"log" yaml:"log" mapstructure:"log"`
	Trace     TraceConfig     `koanf:"trace" json:"trace" yaml:"trace" mapstructure:"trace"`
	Telemetry TelemetryConfig `koanf:"telemetry" json:"telemetry" yaml:"telemetry" mapstructure:"telemetry"`

	// k holds the underlying Koanf instance for flexible access to custom configurations
	k *koanf.Koanf `json:"-" yaml:"-" mapstructure:"-"`
}

// ClientConfig holds the defaults applied to every builder created from the configuration.
type ClientConfig struct {
	BaseURL     string            `koanf:"baseurl" json:"baseurl" yaml:"baseurl" mapstructure:"baseurl" validate:"omitempty,url"`
	Timeout     time.Duration     `koanf:"timeout" json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
	Accept      string            `koanf:"accept" json:"accept" yaml:"accept" mapstructure:"accept"`
	Credentials string            `koanf:"credentials" json:"credentials" yaml:"credentials" mapstructure:"credentials" validate:"omitempty,oneof=omit same-origin include"`
	Headers     map[string]string `koanf:"headers" json:"headers" yaml:"headers" mapstructure:"headers"`
}

// RetryConfig holds the default retry policy. Times counts additional attempts.
type RetryConfig struct {
	Times int           `koanf:"times" json:"times" yaml:"times" mapstructure:"times" validate:"gte=0,lte=100"`
	Sleep time.Duration `koanf:"sleep" json:"sleep" yaml:"sleep" mapstructure:"sleep" validate:"gte=0"`
}

// RateLimitConfig holds client-side throttling settings. A zero RPS disables the limiter.
type RateLimitConfig struct {
	RPS   float64 `koanf:"rps" json:"rps" yaml:"rps" mapstructure:"rps" validate:"gte=0"`
	Burst int     `koanf:"burst" json:"burst" yaml:"burst" mapstructure:"burst" validate:"gte=0"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" mapstructure:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty" mapstructure:"pretty"`
}

// TraceConfig controls request id propagation on outbound requests.
type TraceConfig struct {
	Enabled bool   `koanf:"enabled" json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Header  string `koanf:"header" json:"header" yaml:"header" mapstructure:"header" validate:"required_if=Enabled true"`
}

// TelemetryConfig controls export of client spans and metrics, either as JSON on stderr
// (endpoint "stdout") or to an OTLP collector.
type TelemetryConfig struct {
	Enabled  bool              `koanf:"enabled" json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Service  string            `koanf:"service" json:"service" yaml:"service" mapstructure:"service" validate:"required_if=Enabled true"`
	Interval time.Duration     `koanf:"interval" json:"interval" yaml:"interval" mapstructure:"interval" validate:"gte=0"`
	Endpoint string            `koanf:"endpoint" json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	Protocol string            `koanf:"protocol" json:"protocol" yaml:"protocol" mapstructure:"protocol" validate:"omitempty,oneof=http grpc"`
	Insecure bool              `koanf:"insecure" json:"insecure" yaml:"insecure" mapstructure:"insecure"`
	Headers  map[string]string `koanf:"headers" json:"headers" yaml:"headers" mapstructure:"headers"`
}

// RateLimitEnabled reports whether a client-side limiter should be installed.
func (c *Config) RateLimitEnabled() bool {
	return c.RateLimit.RPS > 0
}
