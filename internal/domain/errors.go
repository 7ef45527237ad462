package domain

import (
	"errors"
	"fmt"
)

// Error codes for different failure scenarios
const (
	ErrInvalidInput   = "INVALID_INPUT"
	ErrUnknownCode    = "UNKNOWN_CODE"
	ErrCatalogInvalid = "CATALOG_INVALID"
	ErrNotFound       = "NOT_FOUND"
	ErrStorage        = "STORAGE_ERROR"
	ErrInternalServer = "INTERNAL_SERVER_ERROR"
)

// EngineError represents a standardized engine error with a machine-readable
// code the caller can branch on.
type EngineError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewEngineError creates a new EngineError
func NewEngineError(code, message, details string) *EngineError {
	return &EngineError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewInvalidInput creates an invalid-input error for a named field.
func NewInvalidInput(field, message string) *EngineError {
	return &EngineError{
		Code:    ErrInvalidInput,
		Message: fmt.Sprintf("invalid %s: %s", field, message),
	}
}

// NewUnknownCode creates an unknown-code error for a schedule lookup miss.
func NewUnknownCode(itemNumber string) *EngineError {
	return &EngineError{
		Code:    ErrUnknownCode,
		Message: fmt.Sprintf("item %s is not in the schedule", itemNumber),
		Details: itemNumber,
	}
}

// ErrorCode extracts the engine error code from an error chain, or "" when the
// error is not an EngineError.
func ErrorCode(err error) string {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// IsInvalidInput reports whether the error chain carries an INVALID_INPUT code.
func IsInvalidInput(err error) bool {
	return ErrorCode(err) == ErrInvalidInput
}

// IsUnknownCode reports whether the error chain carries an UNKNOWN_CODE code.
func IsUnknownCode(err error) bool {
	return ErrorCode(err) == ErrUnknownCode
}

// NewStorageError wraps a persistence failure with the STORAGE_ERROR code.
func NewStorageError(operation string, err error) *EngineError {
	return &EngineError{
		Code:    ErrStorage,
		Message: fmt.Sprintf("%s failed", operation),
		Details: err.Error(),
	}
}
