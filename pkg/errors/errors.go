// Package errors provides the structured error system of the S3 storage backend: error codes,
// categories, and operation context.
package errors

import (
	"encoding/json"
	stderr "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents a structured error code for backend operations.
type ErrorCode string

// Error code constants organized by category.
const (
	// Configuration errors
	ErrCodeConfigInvalid ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigMissing ErrorCode = "CONFIG_MISSING"
	ErrCodeConfigLoad    ErrorCode = "CONFIG_LOAD"

	// Key translation errors
	ErrCodeInvalidKey ErrorCode = "INVALID_KEY"

	// Policy errors
	ErrCodeReadOnlyViolation ErrorCode = "READ_ONLY_VIOLATION"

	// Storage backend errors
	ErrCodeObjectNotFound  ErrorCode = "OBJECT_NOT_FOUND"
	ErrCodeStoreFailure    ErrorCode = "STORE_FAILURE"
	ErrCodeMetadataMissing ErrorCode = "METADATA_MISSING"
	ErrCodeBucketConflict  ErrorCode = "BUCKET_CONFLICT"

	// Execution errors
	ErrCodeDispatchFailure ErrorCode = "DISPATCH_FAILURE"

	// Internal errors
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// Sentinel values usable with errors.Is. Matching is done by code.
var (
	ErrConfigInvalid     = &Error{Code: ErrCodeConfigInvalid}
	ErrInvalidKey        = &Error{Code: ErrCodeInvalidKey}
	ErrReadOnlyViolation = &Error{Code: ErrCodeReadOnlyViolation}
	ErrObjectNotFound    = &Error{Code: ErrCodeObjectNotFound}
	ErrStoreFailure      = &Error{Code: ErrCodeStoreFailure}
	ErrMetadataMissing   = &Error{Code: ErrCodeMetadataMissing}
	ErrBucketConflict    = &Error{Code: ErrCodeBucketConflict}
	ErrDispatchFailure   = &Error{Code: ErrCodeDispatchFailure}
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryKey           ErrorCategory = "key"
	CategoryPolicy        ErrorCategory = "policy"
	CategoryStorage       ErrorCategory = "storage"
	CategoryExecution     ErrorCategory = "execution"
	CategoryInternal      ErrorCategory = "internal"
)

// Error represents a structured error with context and metadata.
type Error struct {
	Code     ErrorCode     `json:"code"`
	Category ErrorCategory `json:"category"`
	Message  string        `json:"message"`

	Context   map[string]string `json:"context,omitempty"`
	Cause     error             `json:"-"`
	Timestamp time.Time         `json:"timestamp"`

	Component string `json:"component,omitempty"`
	Operation string `json:"operation,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Cause != nil {
		if msg == "" {
			msg = e.Cause.Error()
		} else {
			msg = msg + ": " + e.Cause.Error()
		}
	}
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, msg)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error (for errors.Is compatibility).
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// String returns a detailed string representation for logging.
func (e *Error) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Code=%s", e.Code))
	parts = append(parts, fmt.Sprintf("Category=%s", e.Category))
	parts = append(parts, fmt.Sprintf("Message=%q", e.Message))

	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if len(e.Context) > 0 {
		ctx, _ := json.Marshal(e.Context)
		parts = append(parts, fmt.Sprintf("Context=%s", ctx))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}

	return fmt.Sprintf("Error{%s}", strings.Join(parts, ", "))
}

// NewError creates a new error with default values.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:      code,
		Category:  GetCategory(code),
		Message:   message,
		Timestamp: time.Now(),
		Context:   make(map[string]string),
	}
}

// Newf creates a new error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// Wrap creates a new error of the given code around cause.
func Wrap(cause error, code ErrorCode, component, operation, message string) *Error {
	return NewError(code, message).
		WithComponent(component).
		WithOperation(operation).
		WithCause(cause)
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeConfigInvalid, ErrCodeConfigMissing, ErrCodeConfigLoad:
		return CategoryConfiguration
	case ErrCodeInvalidKey:
		return CategoryKey
	case ErrCodeReadOnlyViolation:
		return CategoryPolicy
	case ErrCodeObjectNotFound, ErrCodeStoreFailure, ErrCodeMetadataMissing, ErrCodeBucketConflict:
		return CategoryStorage
	case ErrCodeDispatchFailure:
		return CategoryExecution
	default:
		return CategoryInternal
	}
}

// IsCode reports whether any error in err's chain is an *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	for err != nil {
		if stderr.As(err, &e) {
			if e.Code == code {
				return true
			}
			err = e.Cause
			continue
		}
		return false
	}
	return false
}

// CodeOf returns the code of the outermost *Error in err's chain, or ErrCodeInternalError.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderr.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternalError
}

// WithContext adds contextual information to an error
func (e *Error) WithContext(key, value string) *Error {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithComponent sets the component for an error
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error
func (e *Error) WithOperation(operation string) *Error {
	e.Operation = operation
	return e
}

// WithCause sets the underlying cause
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// GetRecommendation returns a user-friendly recommendation for fixing the error
func (e *Error) GetRecommendation() string {
	recommendations := map[ErrorCode]string{
		ErrCodeConfigInvalid: "Check the volume and storage configuration. " +
			"String properties such as 'url' and 'region' must be strings and 'tls' must be an object.",
		ErrCodeInvalidKey: "The key expression does not start with the storage's strip_prefix " +
			"or does not follow the key expression grammar.",
		ErrCodeReadOnlyViolation: "The storage is configured with read_only=true. " +
			"Remove the flag to accept writes and deletions.",
		ErrCodeBucketConflict: "The bucket already exists. " +
			"Set reuse_bucket=true to attach to the existing bucket.",
		ErrCodeMetadataMissing: "The object was not written by this backend or its metadata was stripped. " +
			"Rewrite the value to restore its timestamp.",
		ErrCodeDispatchFailure: "The owned executor could not run the operation. " +
			"Check that the volume has not been closed, or raise owned_workers if callers time out waiting.",
		ErrCodeStoreFailure: "The object store returned an error. " +
			"Verify the endpoint, credentials and bucket permissions.",
	}

	if rec, exists := recommendations[e.Code]; exists {
		return rec
	}

	return "Please check the error message for details."
}
