package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeValidation represents rejected input (bad depth, empty address)
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeStorage represents failures of the backing relationship store
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeCache represents cache tier failures
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// ErrorType reports the category. Promoted through every embedding error type.
func (e *BaseError) ErrorType() ErrorType {
	return e.Type
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Validation Errors

// ErrValidation is returned when caller input is rejected before any I/O
type ErrValidation struct {
	*BaseError
	Field  string
	Reason string
}

func NewValidation(field, reason string) *ErrValidation {
	return &ErrValidation{
		BaseError: NewBaseError(ErrorTypeValidation, reason, nil),
		Field:     field,
		Reason:    reason,
	}
}

// Storage Errors

// ErrStorage is returned when the relationship store cannot serve a read
type ErrStorage struct {
	*BaseError
	Operation string
}

func NewStorage(operation string, err error) *ErrStorage {
	return &ErrStorage{
		BaseError: NewBaseError(ErrorTypeStorage, fmt.Sprintf("storage operation failed: %s", operation), err),
		Operation: operation,
	}
}

// Cache Errors

// ErrCache describes a cache tier failure. It is logged, never returned to query callers.
type ErrCache struct {
	*BaseError
	Key  string
	Tier string
}

func NewCache(tier, key string, err error) *ErrCache {
	return &ErrCache{
		BaseError: NewBaseError(ErrorTypeCache, fmt.Sprintf("%s tier failed for key %s", tier, key), err),
		Key:       key,
		Tier:      tier,
	}
}

// Context Errors

// ErrContextCancelled is returned when context is cancelled
type ErrContextCancelled struct {
	*BaseError
	Operation string
}

func NewContextCancelled(operation string, err error) *ErrContextCancelled {
	return &ErrContextCancelled{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context cancelled: %s", operation), err),
		Operation: operation,
	}
}

// ErrContextTimeout is returned when context times out
type ErrContextTimeout struct {
	*BaseError
	Operation string
	Timeout   time.Duration
}

func NewContextTimeout(operation string, timeout time.Duration) *ErrContextTimeout {
	return &ErrContextTimeout{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context timeout: %s (timeout: %v)", operation, timeout), nil),
		Operation: operation,
		Timeout:   timeout,
	}
}

// FromContext converts a context error into the matching typed error.
// Returns nil when ctxErr is nil.
func FromContext(operation string, timeout time.Duration, ctxErr error) error {
	switch {
	case ctxErr == nil:
		return nil
	case stderrors.Is(ctxErr, context.DeadlineExceeded):
		return NewContextTimeout(operation, timeout)
	default:
		return NewContextCancelled(operation, ctxErr)
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

type typedError interface {
	ErrorType() ErrorType
}

// IsErrorType checks if an error, or anything it wraps, is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		if te, ok := err.(typedError); ok && te.ErrorType() == errType {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// IsValidation reports whether err is a validation failure
func IsValidation(err error) bool {
	return IsErrorType(err, ErrorTypeValidation)
}

// IsStorage reports whether err is a storage failure
func IsStorage(err error) bool {
	return IsErrorType(err, ErrorTypeStorage)
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	// Caller input will not get better by retrying
	if IsErrorType(err, ErrorTypeValidation) || IsErrorType(err, ErrorTypeContext) {
		return false
	}
	// The engine never retries storage itself; the caller may
	return IsErrorType(err, ErrorTypeStorage)
}
