package models

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every component.
var (
	ErrStorage         = errors.New("storage error")
	ErrIntegrity       = errors.New("integrity error")
	ErrTransientIngest = errors.New("transient ingest error")
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
)

// ValidationError describes a malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
