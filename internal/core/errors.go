package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatInstallation ErrorCategory = "installation" // Hook registration failed
	ErrCatPersistence  ErrorCategory = "persistence"  // Report could not be written
	ErrCatReentrant    ErrorCategory = "reentrant"    // Fault while handling a fault
	ErrCatValidation   ErrorCategory = "validation"   // Invalid input
	ErrCatConfig       ErrorCategory = "config"       // Configuration problem
	ErrCatNotFound     ErrorCategory = "not_found"    // Resource not found
	ErrCatTimeout      ErrorCategory = "timeout"      // Operation timed out
	ErrCatInternal     ErrorCategory = "internal"     // Unexpected internal error
)

// DomainError represents a structured error from the crash handling layer.
type DomainError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Cause    error
	Details  map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrInstallation creates an installation error. These are the only errors
// surfaced to the caller of Install.
func ErrInstallation(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatInstallation,
		Code:     code,
		Message:  message,
	}
}

// ErrPersistence creates a persistence error. During a crash these are logged
// and dropped; termination proceeds regardless.
func ErrPersistence(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatPersistence,
		Code:     code,
		Message:  message,
	}
}

// ErrReentrantFault creates the error recorded when a second fault arrives
// while the first one is still being handled.
func ErrReentrantFault(message string) *DomainError {
	return &DomainError{
		Category: ErrCatReentrant,
		Code:     CodeReentrantFault,
		Message:  message,
	}
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatValidation,
		Code:     code,
		Message:  message,
	}
}

// ErrConfig creates a configuration error.
func ErrConfig(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatConfig,
		Code:     code,
		Message:  message,
	}
}

// ErrTimeout creates a timeout error.
func ErrTimeout(message string) *DomainError {
	return &DomainError{
		Category: ErrCatTimeout,
		Code:     "TIMEOUT",
		Message:  message,
	}
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) *DomainError {
	return &DomainError{
		Category: ErrCatNotFound,
		Code:     "NOT_FOUND",
		Message:  fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// Predefined error codes
const (
	// Installation
	CodeHookRegistration = "HOOK_REGISTRATION_FAILED"
	CodeUnsupportedSig   = "UNSUPPORTED_SIGNAL"
	CodePrepareStorage   = "PREPARE_STORAGE_FAILED"
	CodeRestoreFailed    = "RESTORE_FAILED"

	// Persistence
	CodeEncodeFailed = "ENCODE_FAILED"
	CodeWriteFailed  = "WRITE_FAILED"
	CodeCommitFailed = "COMMIT_FAILED"
	CodeReadFailed   = "READ_FAILED"
	CodeParseFailed  = "PARSE_FAILED"

	// Handling
	CodeReentrantFault = "REENTRANT_FAULT"

	// Validation / config
	CodeInvalidConfig  = "INVALID_CONFIG"
	CodeInvalidTimeout = "INVALID_TIMEOUT"
	CodeInvalidSignal  = "INVALID_SIGNAL"
)
