package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// DefaultFile is the optional YAML file read by Load
	DefaultFile = "fetch.yaml"

	// EnvPrefix is the prefix of environment variables read by Load
	EnvPrefix = "FETCH_"
)

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. YAML configuration file (fetch.yaml, or the given path)
// 3. Default values (lowest priority)
//
// The default file is optional; an explicitly given path must exist.
func Load(path ...string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if len(path) > 0 && path[0] != "" {
		if err := k.Load(file.Provider(path[0]), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path[0], err)
		}
	} else if _, err := os.Stat(DefaultFile); err == nil {
		if err := k.Load(file.Provider(DefaultFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", DefaultFile, err)
		}
	}

	if err := loadEnv(k); err != nil {
		return nil, err
	}

	return finalize(k)
}

// LoadBytes loads configuration from in-memory YAML on top of the defaults. Environment
// variables are not consulted.
func LoadBytes(data []byte) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	return finalize(k)
}

func finalize(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Store the Koanf instance for flexible access
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnv(k *koanf.Koanf) error {
	provider := env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return envKey(key), value
		},
	})
	if err := k.Load(provider, nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

// headerMapPrefixes are config paths holding header maps. Env vars below them keep the rest
// of their name as a single header key.
var headerMapPrefixes = []string{"client_headers_", "telemetry_headers_"}

// envKey maps an environment variable to a config path:
//
//	FETCH_RETRY_TIMES              -> retry.times
//	FETCH_CLIENT_HEADERS_X_API_KEY -> client.headers.x-api-key
func envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	for _, prefix := range headerMapPrefixes {
		if header, ok := strings.CutPrefix(key, prefix); ok && header != "" {
			return strings.ReplaceAll(strings.TrimSuffix(prefix, "_"), "_", ".") + "." +
				strings.ReplaceAll(header, "_", "-")
		}
	}
	return strings.ReplaceAll(key, "_", ".")
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"client.baseurl":     "",
		"client.timeout":     "0s",
		"client.accept":      "",
		"client.credentials": "",

		"retry.times": 0,
		"retry.sleep": "0s",

		"ratelimit.rps":   0,
		"ratelimit.burst": 1,

		"log.level":  "info",
		"log.pretty": false,

		"trace.enabled": false,
		"trace.header":  "X-Request-ID",

		"telemetry.enabled":  false,
		"telemetry.service":  "fetch",
		"telemetry.interval": "10s",
		"telemetry.endpoint": "stdout",
		"telemetry.protocol": "http",
		"telemetry.insecure": false,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}
