// Package validation provides struct and query parameter validation shared by the protocol
// decoder and the HTTP handlers.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/form/v4"
	"github.com/go-playground/validator/v10"

	"github.com/formbricks/wordsim/internal/simerrors"
)

var (
	// validate and decoder are package-level singletons that are safe for concurrent
	// read-only access (validate.Struct() and decoder.Decode() are thread-safe).
	// All registrations MUST happen in init() only, as these methods are NOT thread-safe.
	validate *validator.Validate
	decoder  *form.Decoder
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	decoder = form.NewDecoder()

	// Report fields by their wire name (json for bodies, form for query strings).
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
			if name == "-" {
				return ""
			}

			if name != "" {
				return name
			}
		}

		return fld.Name
	})
}

// ValidateStruct validates a struct using go-playground/validator.
// Failures are returned as *simerrors.ValidationError naming the first offending field.
func ValidateStruct(s any) error {
	if err := validate.Struct(s); err != nil {
		return formatValidationErrors(err)
	}

	return nil
}

// formatValidationErrors converts validator errors to a single ValidationError.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		messages := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			messages = append(messages, formatFieldError(fieldError))
		}

		return simerrors.NewValidationError(validationErrors[0].Field(), strings.Join(messages, "; "))
	}

	return fmt.Errorf("validate: %w", err)
}

// formatFieldError formats a single field validation error.
func formatFieldError(fieldError validator.FieldError) string {
	field := fieldError.Field()
	tag := fieldError.Tag()

	switch tag {
	case "required", "required_if":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fieldError.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fieldError.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fieldError.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fieldError.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fieldError.Param())
	default:
		return field + " is invalid"
	}
}

// DecodeQueryParams decodes URL query parameters into a struct.
func DecodeQueryParams(values map[string][]string, dst any) error {
	if err := decoder.Decode(dst, values); err != nil {
		return simerrors.NewValidationError("", "invalid query parameters: "+err.Error())
	}

	return nil
}

// ValidateAndDecodeQueryParams decodes and validates query parameters in one step.
func ValidateAndDecodeQueryParams(values map[string][]string, dst any) error {
	if err := DecodeQueryParams(values, dst); err != nil {
		return err
	}

	return ValidateStruct(dst)
}
