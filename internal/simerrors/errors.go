// Package simerrors provides sentinel and custom error types shared by the engine and its drivers.
package simerrors

// ErrValidation represents a validation error.
// Use when caller input (a word or a protocol frame) is rejected.
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

// ErrUnavailable is the sentinel for work rejected because the engine cannot serve it
// (embedding model failed to load, or the engine has stopped).
var ErrUnavailable = &UnavailableError{}

// UnavailableError is a sentinel error for an engine that is not accepting work.
type UnavailableError struct {
	Message string
}

// NewUnavailableError creates an UnavailableError with a custom message.
func NewUnavailableError(message string) *UnavailableError {
	return &UnavailableError{Message: message}
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "service unavailable"
}

// Is implements the error interface for error comparison.
func (e *UnavailableError) Is(target error) bool {
	_, ok := target.(*UnavailableError)

	return ok
}
