package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies a failure for callers that branch on category.
type ErrorType string

const (
	ErrTypeValidation  ErrorType = "VALIDATION"
	ErrTypeNotFound    ErrorType = "NOT_FOUND"
	ErrTypePartialData ErrorType = "PARTIAL_DATA"
	ErrTypeInternal    ErrorType = "INTERNAL"
	ErrTypeStorage     ErrorType = "STORAGE"
	ErrTypeParsing     ErrorType = "PARSING"
	ErrTypeConfig      ErrorType = "CONFIG"
	ErrTypeCancelled   ErrorType = "CANCELLED"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface. The type is not part of the text so
// the message can be shown to users verbatim.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// TypeOf reports the category of err. Errors that carry no AppError in their
// chain are INTERNAL.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrTypeInternal
}

// Is reports whether err carries an AppError of the given type.
func Is(err error, errType ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == errType
}

// NewValidationError creates a validation error with a formatted message
func NewValidationError(format string, args ...interface{}) *AppError {
	return NewAppError(ErrTypeValidation, fmt.Sprintf(format, args...), nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewInternalError wraps an unexpected failure
func NewInternalError(message string, cause error) *AppError {
	return NewAppError(ErrTypeInternal, message, cause)
}

// NewCancelledError reports a job that was cancelled before it ran
func NewCancelledError(message string) *AppError {
	return NewAppError(ErrTypeCancelled, message, nil)
}
