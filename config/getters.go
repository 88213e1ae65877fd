package config

import "time"

// GetString retrieves a string value from the configuration or the provided default.
func (c *Config) GetString(key string, defaultVal ...string) string {
	if c == nil || c.k == nil || !c.k.Exists(key) {
		return optionalDefault("", defaultVal...)
	}
	return c.k.String(key)
}

// GetInt retrieves an int value from the configuration or the provided default.
func (c *Config) GetInt(key string, defaultVal ...int) int {
	if c == nil || c.k == nil || !c.k.Exists(key) {
		return optionalDefault(0, defaultVal...)
	}
	return c.k.Int(key)
}

// GetBool retrieves a bool value from the configuration or the provided default.
func (c *Config) GetBool(key string, defaultVal ...bool) bool {
	if c == nil || c.k == nil || !c.k.Exists(key) {
		return optionalDefault(false, defaultVal...)
	}
	return c.k.Bool(key)
}

// GetDuration retrieves a duration value from the configuration or the provided default.
func (c *Config) GetDuration(key string, defaultVal ...time.Duration) time.Duration {
	if c == nil || c.k == nil || !c.k.Exists(key) {
		return optionalDefault(time.Duration(0), defaultVal...)
	}
	return c.k.Duration(key)
}

// Exists reports whether key is set by any configuration source.
func (c *Config) Exists(key string) bool {
	return c != nil && c.k != nil && c.k.Exists(key)
}

// Unmarshal decodes the subtree at key into out.
func (c *Config) Unmarshal(key string, out any) error {
	if c == nil || c.k == nil {
		return NewInvalidFieldError(key, "configuration not initialized", nil)
	}
	return c.k.Unmarshal(key, out)
}

func optionalDefault[T any](zero T, overrides ...T) T {
	if len(overrides) > 0 {
		return overrides[0]
	}
	return zero
}
