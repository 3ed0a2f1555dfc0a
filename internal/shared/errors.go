package shared

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates resource not found.
var ErrNotFound = errors.New("not found")

// ErrForbidden indicates the caller's role does not permit the operation.
var ErrForbidden = errors.New("forbidden")

// ValidationError reports malformed input rejected before any write.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidation builds a ValidationError with a machine code.
func NewValidation(code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}

// StateConflictError reports an operation rejected because of the record's
// current state (terminal status, system-managed record, stale version).
type StateConflictError struct {
	Code         string
	Message      string
	CurrentState string
}

func (e *StateConflictError) Error() string {
	if e.CurrentState != "" {
		return fmt.Sprintf("%s: %s (current state %s)", e.Code, e.Message, e.CurrentState)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewStateConflict builds a StateConflictError surfacing the current state.
func NewStateConflict(code, message, currentState string) *StateConflictError {
	return &StateConflictError{Code: code, Message: message, CurrentState: currentState}
}

// NotFoundError reports a missing referenced record.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFound builds a NotFoundError.
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// PartialFailureError reports a dependent write that failed after a parent
// record was persisted. The parent id is surfaced so an operator can complete
// or unwind the sequence; it must not be treated as a total failure.
type PartialFailureError struct {
	Code      string
	Message   string
	CreatedID string
	Cause     error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s: %s (created record %s): %v", e.Code, e.Message, e.CreatedID, e.Cause)
}

func (e *PartialFailureError) Unwrap() error { return e.Cause }

// NewPartialFailure builds a PartialFailureError carrying the parent id.
func NewPartialFailure(code, message, createdID string, cause error) *PartialFailureError {
	return &PartialFailureError{Code: code, Message: message, CreatedID: createdID, Cause: cause}
}

// IsStateConflict reports whether err is a StateConflictError.
func IsStateConflict(err error) bool {
	var sc *StateConflictError
	return errors.As(err, &sc)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
