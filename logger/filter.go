package logger

import (
	"net/url"
	"reflect"
	"strings"
)

const (
	// DefaultMaskValue replaces sensitive values in log output
	DefaultMaskValue = "***"

	// DefaultMaxDepth is the default maximum recursion depth for filtering
	DefaultMaxDepth = 8
)

// FilterConfig defines the configuration for sensitive data filtering
type FilterConfig struct {
	// SensitiveFields contains field, header and query parameter names that should be
	// masked. Matching is a case-insensitive substring test.
	SensitiveFields []string
	// MaskValue is the value used to replace sensitive data (default: "***")
	MaskValue string
}

// DefaultFilterConfig returns a default configuration with common sensitive field names
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		SensitiveFields: []string{
			"password", "passwd", "pwd",
			"secret", "api_key", "apikey", "api-key",
			"token", "authorization", "auth",
			"cookie", "credential", "signature",
		},
		MaskValue: DefaultMaskValue,
	}
}

// SensitiveDataFilter masks sensitive values before they reach a log event. URLs keep their
// structure; only passwords and sensitive query parameters are masked.
type SensitiveDataFilter struct {
	config *FilterConfig
}

// NewSensitiveDataFilter creates a new filter with the given configuration
func NewSensitiveDataFilter(config *FilterConfig) *SensitiveDataFilter {
	if config == nil {
		config = DefaultFilterConfig()
	}
	if config.MaskValue == "" {
		config.MaskValue = DefaultMaskValue
	}
	return &SensitiveDataFilter{config: config}
}

// FilterString filters sensitive data from string values
func (f *SensitiveDataFilter) FilterString(key, value string) string {
	if value == "" {
		return value
	}
	if f.isSensitiveField(key) {
		return f.config.MaskValue
	}
	if isURL(value) {
		return f.MaskURL(value)
	}
	return value
}

// FilterValue filters sensitive data from maps, slices and strings. Other values pass
// through unchanged.
func (f *SensitiveDataFilter) FilterValue(key string, value any) any {
	return f.filterValue(key, value, DefaultMaxDepth)
}

// FilterFields filters a map of fields for sensitive data
func (f *SensitiveDataFilter) FilterFields(fields map[string]any) map[string]any {
	filtered := make(map[string]any, len(fields))
	for key, value := range fields {
		filtered[key] = f.FilterValue(key, value)
	}
	return filtered
}

func (f *SensitiveDataFilter) filterValue(key string, value any, depth int) any {
	if value == nil {
		return nil
	}
	if f.isSensitiveField(key) {
		return f.config.MaskValue
	}
	if depth <= 0 {
		return value
	}

	switch v := value.(type) {
	case string:
		return f.FilterString(key, v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = f.filterValue(k, item, depth-1)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, item := range v {
			out[k] = f.FilterString(k, item)
		}
		return out
	case []string:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = f.FilterString(key, item)
		}
		return out
	}

	// named multimaps such as net/http.Header
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			out[k] = f.filterValue(k, iter.Value().Interface(), depth-1)
		}
		return out
	}
	return value
}

// isSensitiveField checks if a field name is considered sensitive
func (f *SensitiveDataFilter) isSensitiveField(fieldName string) bool {
	lowerFieldName := strings.ToLower(fieldName)
	for _, sensitiveField := range f.config.SensitiveFields {
		if strings.Contains(lowerFieldName, strings.ToLower(sensitiveField)) {
			return true
		}
	}
	return false
}

func isURL(value string) bool {
	return strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://")
}

// MaskURL masks the userinfo password and sensitive query parameters of rawURL.
// Unparseable URLs are masked entirely.
func (f *SensitiveDataFilter) MaskURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return f.config.MaskValue
	}

	changed := false
	if parsed.User != nil {
		if _, hasPassword := parsed.User.Password(); hasPassword {
			parsed.User = url.UserPassword(parsed.User.Username(), f.config.MaskValue)
			changed = true
		}
	}

	if parsed.RawQuery != "" {
		query := parsed.Query()
		masked := false
		for name, values := range query {
			if !f.isSensitiveField(name) {
				continue
			}
			for i := range values {
				values[i] = f.config.MaskValue
			}
			masked = true
		}
		if masked {
			parsed.RawQuery = query.Encode()
			changed = true
		}
	}

	if !changed {
		return rawURL
	}
	// keep the mask readable instead of percent-encoded
	return strings.ReplaceAll(parsed.String(), url.QueryEscape(f.config.MaskValue), f.config.MaskValue)
}
