package validation

import (
	"errors"
	"fmt"
	"math"
)

// ConfigValidator collects cross-field validation errors for a configuration
// section instead of failing on the first one.
type ConfigValidator struct {
	errors []error
	name   string // section name for error messages
}

// NewConfigValidator creates a validator for the named section.
func NewConfigValidator(section string) *ConfigValidator {
	return &ConfigValidator{name: section}
}

func (cv *ConfigValidator) addf(field, format string, args ...any) *ConfigValidator {
	cv.errors = append(cv.errors, fmt.Errorf("%s.%s: %s", cv.name, field, fmt.Sprintf(format, args...)))
	return cv
}

// Required validates that a string field is not empty.
func (cv *ConfigValidator) Required(field, value string) *ConfigValidator {
	if value == "" {
		return cv.addf(field, "required field is empty")
	}
	return cv
}

// Positive validates that an int field is > 0.
func (cv *ConfigValidator) Positive(field string, value int) *ConfigValidator {
	if value <= 0 {
		return cv.addf(field, "value %d must be positive", value)
	}
	return cv
}

// NonNegative validates that an int field is >= 0.
func (cv *ConfigValidator) NonNegative(field string, value int) *ConfigValidator {
	if value < 0 {
		return cv.addf(field, "value %d must be non-negative", value)
	}
	return cv
}

// RangeInt validates that min <= value <= max.
func (cv *ConfigValidator) RangeInt(field string, value, min, max int) *ConfigValidator {
	if value < min || value > max {
		return cv.addf(field, "value %d is outside range [%d, %d]", value, min, max)
	}
	return cv
}

// PositiveFloat validates that a float field is finite and > 0.
func (cv *ConfigValidator) PositiveFloat(field string, value float64) *ConfigValidator {
	if !(value > 0) || math.IsInf(value, 1) {
		return cv.addf(field, "value %g must be positive", value)
	}
	return cv
}

// Probability validates that 0 < value < 1.
func (cv *ConfigValidator) Probability(field string, value float64) *ConfigValidator {
	if !(value > 0 && value < 1) {
		return cv.addf(field, "value %g must be in (0, 1)", value)
	}
	return cv
}

// OneOf validates that a string field is one of the allowed values.
func (cv *ConfigValidator) OneOf(field, value string, allowed []string) *ConfigValidator {
	for _, a := range allowed {
		if value == a {
			return cv
		}
	}
	return cv.addf(field, "value %q must be one of %v", value, allowed)
}

// Custom applies a custom validation function.
func (cv *ConfigValidator) Custom(field string, fn func() error) *ConfigValidator {
	if err := fn(); err != nil {
		cv.errors = append(cv.errors, fmt.Errorf("%s.%s: %w", cv.name, field, err))
	}
	return cv
}

// When applies validations only if condition holds.
func (cv *ConfigValidator) When(condition bool, validations func(*ConfigValidator)) *ConfigValidator {
	if condition {
		validations(cv)
	}
	return cv
}

// HasErrors reports whether any validation failed.
func (cv *ConfigValidator) HasErrors() bool {
	return len(cv.errors) > 0
}

// Errors returns all validation errors.
func (cv *ConfigValidator) Errors() []error {
	return cv.errors
}

// Validate returns every collected error joined, or nil.
func (cv *ConfigValidator) Validate() error {
	return errors.Join(cv.errors...)
}

// DefaultOr returns value if it is non-zero, otherwise def.
func DefaultOr[T comparable](value, def T) T {
	var zero T
	if value == zero {
		return def
	}
	return value
}

// DefaultOrInt returns value if it is positive, otherwise def.
func DefaultOrInt(value, def int) int {
	if value <= 0 {
		return def
	}
	return value
}
