package http

import (
	"golang.org/x/time/rate"

	"github.com/gaborage/go-fetch/config"
	"github.com/gaborage/go-fetch/logger"
)

// NewFromConfig creates a builder preconfigured from cfg: base URL, default headers,
// accept type, credentials, per-attempt timeout, retry policy, rate limiter and request id
// propagation. Entries under client.options are applied with WithOption in key order.
// A nil log disables logging.
func NewFromConfig(cfg *config.Config, log logger.Logger) *Builder {
	b := NewBuilder(cfg.Client.BaseURL)
	if log != nil {
		b.WithLogger(log)
	}

	if len(cfg.Client.Headers) > 0 {
		b.WithHeaders(cfg.Client.Headers)
	}
	if cfg.Client.Accept != "" {
		b.Accept(cfg.Client.Accept)
	}
	if cfg.Client.Credentials != "" {
		b.WithCredentials(Credentials(cfg.Client.Credentials))
	}
	if cfg.Client.Timeout > 0 {
		b.Timeout(cfg.Client.Timeout)
	}
	if cfg.Retry.Times > 0 {
		b.Retry(cfg.Retry.Times, cfg.Retry.Sleep)
	}
	if cfg.RateLimitEnabled() {
		b.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), max(cfg.RateLimit.Burst, 1)))
	}
	if cfg.Trace.Enabled {
		b.WithTraceHeader(cfg.Trace.Header)
	}
	applyConfigOptions(b, cfg)
	return b
}

func applyConfigOptions(b *Builder, cfg *config.Config) {
	if !cfg.Exists(configOptionsKey) {
		return
	}

	var opts map[string]any
	if err := cfg.Unmarshal(configOptionsKey, &opts); err != nil {
		b.fail(NewInvalidOptionError(configOptionsKey, cfg.GetString(configOptionsKey)))
		return
	}

	for _, k := range sortedKeys(opts) {
		b.WithOption(k, opts[k])
	}
}

const configOptionsKey = "client.options"
