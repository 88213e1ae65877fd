package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report fields by their koanf key
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("koanf"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks cfg against its struct constraints and returns an Errors value listing
// every violation.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	out := make(Errors, 0, len(validationErrors))
	for _, fe := range validationErrors {
		out = append(out, toConfigError(fe))
	}
	return out
}

func toConfigError(fe validator.FieldError) *ConfigError {
	field := fieldPath(fe.Namespace())

	switch fe.Tag() {
	case "required", "required_if":
		return NewMissingFieldError(field)
	case "oneof":
		return NewInvalidFieldError(field, fmt.Sprintf("invalid value %q", fmt.Sprint(fe.Value())), strings.Fields(fe.Param()))
	case "url":
		return NewInvalidFieldError(field, "must be an absolute URL", nil)
	case "gte":
		return NewInvalidFieldError(field, fmt.Sprintf("must be at least %s", fe.Param()), nil)
	case "lte":
		return NewInvalidFieldError(field, fmt.Sprintf("must be at most %s", fe.Param()), nil)
	default:
		return NewInvalidFieldError(field, fmt.Sprintf("failed %s validation", fe.Tag()), nil)
	}
}

// fieldPath drops the root struct name: "Config.retry.times" -> "retry.times".
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}
