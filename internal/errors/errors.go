package errors

import "fmt"

// ErrorCode represents a vitalctx error code.
type ErrorCode string

const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"   // 400
	ErrNotFound         ErrorCode = "NOT_FOUND"         // 404
	ErrBusy             ErrorCode = "BUSY"              // 409 (load/save already in flight)
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED" // 422 (orphaned selection at save time)
	ErrInternal         ErrorCode = "INTERNAL"          // 500
	ErrLoadFailed       ErrorCode = "LOAD_FAILED"       // 502 (one or more store fetches failed)
	ErrPersistFailed    ErrorCode = "PERSIST_FAILED"    // 502 (one or more store writes failed)
)

// EngineError represents a structured error with code, status, and details.
type EngineError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying store error, if any.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *EngineError {
	return &EngineError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when an item cannot be found.
func NewNotFound(identifier string) *EngineError {
	return &EngineError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("item not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewBusy creates a 409 error for when a load or save is already in flight.
func NewBusy(operation string) *EngineError {
	return &EngineError{
		Code:    ErrBusy,
		Status:  409,
		Message: fmt.Sprintf("%s rejected: another operation is in flight", operation),
		Details: map[string]any{"operation": operation},
	}
}

// NewValidationFailed creates a 422 error for orphaned selections at save
// time. orphaned maps category name to the number of selected items whose
// category is disabled.
func NewValidationFailed(orphaned map[string]int) *EngineError {
	total := 0
	for _, n := range orphaned {
		total += n
	}
	return &EngineError{
		Code:    ErrValidationFailed,
		Status:  422,
		Message: fmt.Sprintf("%d selected item(s) belong to disabled categories; enable the category or deselect them", total),
		Details: map[string]any{"orphaned": orphaned},
	}
}

// NewLoadFailed creates a 502 error wrapping the first fetch failure.
func NewLoadFailed(err error) *EngineError {
	return &EngineError{
		Code:    ErrLoadFailed,
		Status:  502,
		Message: fmt.Sprintf("failed to load context state: %v", err),
		Cause:   err,
	}
}

// NewPersistFailed creates a 502 error wrapping the first write failure.
// Writes that succeeded before the failure are not rolled back; the next
// load re-derives ground truth from the stores.
func NewPersistFailed(err error) *EngineError {
	return &EngineError{
		Code:    ErrPersistFailed,
		Status:  502,
		Message: fmt.Sprintf("failed to persist context state: %v", err),
		Cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *EngineError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &EngineError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Cause:   err,
	}
}

// Is checks if an error is an EngineError with the given code.
func Is(err error, code ErrorCode) bool {
	if eErr, ok := err.(*EngineError); ok {
		return eErr.Code == code
	}
	return false
}
