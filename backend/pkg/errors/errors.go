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
	// ErrorTypeNotFound represents a referenced entity, meeting, or relationship that does not exist
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeConflict represents a request that contradicts graph invariants
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeValidation represents malformed input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeStoreUnavailable represents graph store connectivity or timeout failures
	ErrorTypeStoreUnavailable ErrorType = "store_unavailable"
	// ErrorTypeStore represents graph store query failures that are not availability problems
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeExtraction represents extraction service failures
	ErrorTypeExtraction ErrorType = "extraction"
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

// Kind returns the error category. It lets typed errors that embed
// *BaseError be matched by IsErrorType.
func (e *BaseError) Kind() ErrorType {
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

// Not Found

// ErrNotFound is returned when a referenced node or edge does not exist
type ErrNotFound struct {
	*BaseError
	Resource string
	ID       string
}

// NewNotFound creates a not-found error for the given kind ("entity", "meeting", ...) and id
func NewNotFound(kind, id string) *ErrNotFound {
	return &ErrNotFound{
		BaseError: NewBaseError(ErrorTypeNotFound, fmt.Sprintf("%s not found: %s", kind, id), nil),
		Resource:  kind,
		ID:        id,
	}
}

// Conflict

// ErrConflict is returned when an operation would violate a graph invariant
type ErrConflict struct {
	*BaseError
	Reason string
}

func NewConflict(reason string) *ErrConflict {
	return &ErrConflict{
		BaseError: NewBaseError(ErrorTypeConflict, reason, nil),
		Reason:    reason,
	}
}

// Validation

// ErrValidation is returned for malformed input
type ErrValidation struct {
	*BaseError
	Field  string
	Reason string
}

func NewValidation(field, reason string) *ErrValidation {
	return &ErrValidation{
		BaseError: NewBaseError(ErrorTypeValidation, fmt.Sprintf("invalid %s: %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// Store

// ErrStoreUnavailable is returned when the graph store cannot be reached or times out
type ErrStoreUnavailable struct {
	*BaseError
	Operation string
}

func NewStoreUnavailable(operation string, err error) *ErrStoreUnavailable {
	return &ErrStoreUnavailable{
		BaseError: NewBaseError(ErrorTypeStoreUnavailable, fmt.Sprintf("graph store unavailable during %s", operation), err),
		Operation: operation,
	}
}

// ErrStoreQueryFailed is returned when a store query fails for a reason other than availability
type ErrStoreQueryFailed struct {
	*BaseError
	Operation string
}

func NewStoreQueryFailed(operation string, err error) *ErrStoreQueryFailed {
	return &ErrStoreQueryFailed{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("query failed: %s", operation), err),
		Operation: operation,
	}
}

// Extraction

// ErrExtractionFailed is returned when the extraction service call fails
type ErrExtractionFailed struct {
	*BaseError
	Provider string
}

func NewExtractionFailed(provider string, err error) *ErrExtractionFailed {
	return &ErrExtractionFailed{
		BaseError: NewBaseError(ErrorTypeExtraction, fmt.Sprintf("extraction via %s failed", provider), err),
		Provider:  provider,
	}
}

// Context Errors

// ErrContextTimeout is returned when context times out
type ErrContextTimeout struct {
	*BaseError
	Operation string
	Timeout   time.Duration
}

func NewContextTimeout(operation string, timeout time.Duration) *ErrContextTimeout {
	return &ErrContextTimeout{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context timeout: %s (timeout: %v)", operation, timeout), context.DeadlineExceeded),
		Operation: operation,
		Timeout:   timeout,
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

type kinded interface {
	Kind() ErrorType
}

// IsErrorType checks if an error, or any error it wraps, is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		if k, ok := err.(kinded); ok && k.Kind() == errType {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// TypeOf returns the category of the outermost typed error in the chain, or "" if none
func TypeOf(err error) ErrorType {
	for err != nil {
		if k, ok := err.(kinded); ok {
			return k.Kind()
		}
		err = stderrors.Unwrap(err)
	}
	return ""
}

func IsNotFound(err error) bool   { return IsErrorType(err, ErrorTypeNotFound) }
func IsConflict(err error) bool   { return IsErrorType(err, ErrorTypeConflict) }
func IsValidation(err error) bool { return IsErrorType(err, ErrorTypeValidation) }

// IsStoreUnavailable reports whether err came from the graph store being unreachable
func IsStoreUnavailable(err error) bool {
	return IsErrorType(err, ErrorTypeStoreUnavailable)
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Context errors are not retryable
	if IsErrorType(err, ErrorTypeContext) || stderrors.Is(err, context.Canceled) {
		return false
	}
	return IsStoreUnavailable(err)
}
