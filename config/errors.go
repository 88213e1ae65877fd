package config

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError represents a configuration error with actionable guidance.
// All error messages are lowercase following Go conventions.
//
//nolint:revive // ConfigError is intentionally named for clarity in external API usage
type ConfigError struct {
	Category string   // error category: "missing", "invalid"
	Field    string   // config field path (e.g., "retry.times", "client.baseurl")
	Message  string   // user-friendly error message (lowercase)
	Action   string   // actionable instruction (lowercase)
	Details  []string // additional details or examples
}

// Error implements the error interface with lowercase formatting.
func (e *ConfigError) Error() string {
	var parts []string

	if e.Category != "" {
		parts = append(parts, fmt.Sprintf("config_%s:", e.Category))
	}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Action != "" {
		parts = append(parts, e.Action)
	}
	if len(e.Details) > 0 {
		parts = append(parts, strings.Join(e.Details, "; "))
	}

	return strings.Join(parts, " ")
}

// NewMissingFieldError creates an error for a required missing configuration field.
func NewMissingFieldError(field string) *ConfigError {
	return &ConfigError{
		Category: "missing",
		Field:    field,
		Message:  "required",
		Action:   fmt.Sprintf("set %s env var or add %s to %s", EnvVarFor(field), field, DefaultFile),
	}
}

// NewInvalidFieldError creates an error for an invalid configuration value.
func NewInvalidFieldError(field, message string, validOptions []string) *ConfigError {
	err := &ConfigError{
		Category: "invalid",
		Field:    field,
		Message:  message,
	}

	if len(validOptions) > 0 {
		err.Action = fmt.Sprintf("must be one of: %s", strings.Join(validOptions, ", "))
	}

	return err
}

// Errors is the set of problems found by Validate.
type Errors []*ConfigError

func (e Errors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d configuration errors: %s", len(e), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e Errors) Unwrap() []error {
	out := make([]error, 0, len(e))
	for _, err := range e {
		out = append(out, err)
	}
	return out
}

// FieldErrors returns every ConfigError carried by err.
func FieldErrors(err error) []*ConfigError {
	var errs Errors
	if errors.As(err, &errs) {
		return errs
	}
	var single *ConfigError
	if errors.As(err, &single) {
		return []*ConfigError{single}
	}
	return nil
}

// EnvVarFor returns the environment variable that sets the koanf key field.
func EnvVarFor(field string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(field, ".", "_"))
}
