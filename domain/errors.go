package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents the type of domain error
type ErrorCode string

const (
	// ErrCodeInvalidInput indicates that the input provided is invalid
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrCodeStoreUnavailable indicates the options table could not be read
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"

	// ErrCodeConfigMissing indicates required warehouse credentials or ids are absent
	ErrCodeConfigMissing ErrorCode = "CONFIG_MISSING"

	// ErrCodeAuth indicates the token exchange failed
	ErrCodeAuth ErrorCode = "AUTH_ERROR"

	// ErrCodeUpload indicates the warehouse rejected or failed the upload
	ErrCodeUpload ErrorCode = "UPLOAD_ERROR"

	// ErrCodePushInProgress indicates another push holds the push lock
	ErrCodePushInProgress ErrorCode = "PUSH_IN_PROGRESS"

	// ErrCodeTimezone indicates a timezone-related error
	ErrCodeTimezone ErrorCode = "TIMEZONE_ERROR"

	// ErrCodeScheduler indicates a scheduling error
	ErrCodeScheduler ErrorCode = "SCHEDULER_ERROR"

	// ErrCodeFileOperation indicates a file operation error
	ErrCodeFileOperation ErrorCode = "FILE_OPERATION_ERROR"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetails adds details to the error
func (e *DomainError) WithDetails(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// NewDomainErrorWithCause creates a new domain error with an underlying cause
func NewDomainErrorWithCause(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// Common domain errors

// ErrInvalidInput creates an invalid input error
func ErrInvalidInput(field string, reason string) *DomainError {
	return NewDomainError(ErrCodeInvalidInput, fmt.Sprintf("invalid %s: %s", field, reason)).
		WithDetails("field", field).
		WithDetails("reason", reason)
}

// IsErrorCode checks if an error (or any error it wraps) has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// Pipeline errors

// ErrStoreUnavailable creates a store unavailable error
func ErrStoreUnavailable(operation string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeStoreUnavailable, fmt.Sprintf("options store unavailable during %s", operation), err).
		WithDetails("operation", operation)
}

// ErrConfigMissing creates a config missing error naming the absent fields
func ErrConfigMissing(fields ...string) *DomainError {
	return NewDomainError(ErrCodeConfigMissing, fmt.Sprintf("warehouse configuration missing: %s", strings.Join(fields, ", "))).
		WithDetails("fields", fields)
}

// ErrAuth creates an authentication error
func ErrAuth(reason string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeAuth, fmt.Sprintf("failed to obtain access token: %s", reason), err).
		WithDetails("reason", reason)
}

// ErrUpload creates an upload error carrying the HTTP status and response body
func ErrUpload(statusCode int, body string) *DomainError {
	return NewDomainError(ErrCodeUpload, fmt.Sprintf("warehouse API error (HTTP %d): %s", statusCode, body)).
		WithDetails("statusCode", statusCode).
		WithDetails("body", body)
}

// ErrUploadWithCause creates an upload error with cause
func ErrUploadWithCause(operation string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeUpload, fmt.Sprintf("warehouse upload failed in %s", operation), err).
		WithDetails("operation", operation)
}

// ErrPushInProgress creates an error for a push refused by the push lock
func ErrPushInProgress() *DomainError {
	return NewDomainError(ErrCodePushInProgress, "push already in progress")
}

// ClassifyPipelineError maps any error onto the pipeline taxonomy.
// Errors that carry no taxonomy code take the code of the stage they came from.
func ClassifyPipelineError(err error, stage ErrorCode) *DomainError {
	if err == nil {
		return nil
	}
	switch code := GetErrorCode(err); code {
	case ErrCodeStoreUnavailable, ErrCodeConfigMissing, ErrCodeAuth, ErrCodeUpload, ErrCodePushInProgress:
		var domainErr *DomainError
		errors.As(err, &domainErr)
		return domainErr
	}
	return NewDomainErrorWithCause(stage, "unexpected pipeline failure", err)
}

// Timezone-specific errors

// ErrTimezoneParse creates a timezone parsing error
func ErrTimezoneParse(timezoneName string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeTimezone, fmt.Sprintf("failed to parse timezone: %s", timezoneName), err).
		WithDetails("timezoneName", timezoneName)
}

// ErrScheduler creates a scheduler error
func ErrScheduler(operation string, reason string) *DomainError {
	return NewDomainError(ErrCodeScheduler, fmt.Sprintf("scheduler error in %s: %s", operation, reason)).
		WithDetails("operation", operation).
		WithDetails("reason", reason)
}

// File operation errors

// ErrFileOperationWithCause creates a file operation error with cause
func ErrFileOperationWithCause(operation string, path string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeFileOperation, fmt.Sprintf("file operation error in %s", operation), err).
		WithDetails("operation", operation).
		WithDetails("path", path)
}
