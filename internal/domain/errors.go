package domain

import (
	"errors"
	"fmt"
	"time"
)

// Error codes for different failure scenarios
const (
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeDependency = "DEPENDENCY_ERROR"
	ErrCodeRateLimit  = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal   = "INTERNAL_SERVER_ERROR"
)

// EngineError is the standardized error response surfaced to callers.
// It carries a machine-readable code and a human-readable message, never
// stack traces or internal knowledge-base identifiers.
type EngineError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewEngineError creates a new EngineError with timestamp
func NewEngineError(code, message, details, requestID string) *EngineError {
	return &EngineError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// ValidationError represents malformed or insufficient input. It is a
// caller error and is never retried.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// NotFoundError represents a referenced medicine or patient missing from
// the knowledge base.
type NotFoundError struct {
	Resource string `json:"resource"`
	Name     string `json:"name"`
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Resource, e.Name)
}

// Unwrap lets callers match against ErrNotFound.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, name string) *NotFoundError {
	return &NotFoundError{Resource: resource, Name: name}
}

// DependencyError represents a knowledge-base read failure for a
// single-step operation. Callers may retry with backoff; the engine
// itself never retries.
type DependencyError struct {
	Source string
	Err    error
}

// Error implements the error interface
func (e *DependencyError) Error() string {
	return fmt.Sprintf("dependency %s unavailable: %v", e.Source, e.Err)
}

// Unwrap returns the underlying cause.
func (e *DependencyError) Unwrap() error {
	return e.Err
}

// NewDependencyError creates a new DependencyError
func NewDependencyError(source string, err error) *DependencyError {
	return &DependencyError{Source: source, Err: err}
}

// IsValidation reports whether the error is an input validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether the error is a missing-resource failure.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe) || errors.Is(err, ErrNotFound)
}

// IsDependency reports whether the error is a knowledge-base availability
// failure.
func IsDependency(err error) bool {
	var de *DependencyError
	return errors.As(err, &de)
}
