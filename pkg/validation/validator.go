package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is shared; validator.Validate caches struct metadata and is safe
// for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Struct checks the `validate` tags of v and its nested structs, returning
// every violation joined.
func Struct(v any) error {
	if v == nil {
		return errors.New("config cannot be nil")
	}
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, formatFieldError(fe))
	}
	return errors.Join(out...)
}

// formatFieldError renders a tag violation against the dotted field path,
// without the root type name.
func formatFieldError(fe validator.FieldError) error {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	param := fe.Param()

	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s: field is required", field)
	case "gt":
		return fmt.Errorf("%s: must be greater than %s, got %v", field, param, fe.Value())
	case "gte", "min":
		return fmt.Errorf("%s: must be at least %s, got %v", field, param, fe.Value())
	case "lt":
		return fmt.Errorf("%s: must be less than %s, got %v", field, param, fe.Value())
	case "lte", "max":
		return fmt.Errorf("%s: must not exceed %s, got %v", field, param, fe.Value())
	case "oneof":
		return fmt.Errorf("%s: must be one of [%s], got %v", field, param, fe.Value())
	default:
		return fmt.Errorf("%s: validation failed (%s)", field, fe.Tag())
	}
}
