// Package domain defines core types, interfaces, and errors for the
// identity and authorization service.
package domain

import "fmt"

// NotFoundError indicates a record was not found in the backing store.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a conflict (e.g., duplicate local key).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// RejectedError is the normal negative outcome of reconciliation: the
// presented identity is unknown and not eligible for provisioning. It is a
// policy decision, not a failure.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string { return e.Message }

// GrantWriteError indicates an authorization commit was not applied. Nothing
// was partially written.
type GrantWriteError struct {
	ResourceID string
	Err        error
}

func (e *GrantWriteError) Error() string {
	return fmt.Sprintf("write grants for resource %q: %v", e.ResourceID, e.Err)
}

func (e *GrantWriteError) Unwrap() error { return e.Err }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrRejected creates a RejectedError with a formatted message.
func ErrRejected(format string, args ...interface{}) *RejectedError {
	return &RejectedError{Message: fmt.Sprintf(format, args...)}
}
