package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by services, stores and the HTTP layer.
var (
	ErrNotFound           = errors.New("not found")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("conflict")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrUnauthenticated    = errors.New("unauthenticated")
)

// FieldError describes one violated rule on one input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every rule an input violated, not just the first.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Field+": "+fe.Message)
	}
	return fmt.Sprintf("validation: %d errors (%s)", len(e.Errors), strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: message}}}
}

// Violations accumulates field errors and yields nil when nothing was added.
type Violations []FieldError

// Add records a violation.
func (v *Violations) Add(field, message string) {
	*v = append(*v, FieldError{Field: field, Message: message})
}

// Err returns a *ValidationError or nil.
func (v Violations) Err() error {
	if len(v) == 0 {
		return nil
	}
	out := make([]FieldError, len(v))
	copy(out, v)
	return &ValidationError{Errors: out}
}
