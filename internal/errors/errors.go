// Package errors provides structured error types for the RoboLake system.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryDecode   ErrorCategory = "DECODE"
	ErrCategorySchema   ErrorCategory = "SCHEMA"
	ErrCategoryCatalog  ErrorCategory = "CATALOG"
	ErrCategoryQuery    ErrorCategory = "QUERY"
	ErrCategoryStorage  ErrorCategory = "STORAGE"
	ErrCategoryInternal ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Decode codes
	CodeDecodeFailed = "DECODE_FAILED"

	// Schema codes
	CodeSchemaConflict = "SCHEMA_CONFLICT"
	CodeInvalidSchema  = "INVALID_SCHEMA"

	// Catalog codes
	CodeNameConflict   = "NAME_CONFLICT"
	CodeAlreadyExists  = "ALREADY_EXISTS"
	CodeUnknownCatalog = "UNKNOWN_CATALOG"
	CodeTableNotFound  = "TABLE_NOT_FOUND"

	// Query codes
	CodeQueryFailed = "QUERY_FAILED"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// RoboLakeError is the structured error type used throughout the system.
type RoboLakeError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *RoboLakeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *RoboLakeError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *RoboLakeError) Is(target error) bool {
	var t *RoboLakeError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new RoboLakeError.
func New(category ErrorCategory, code, message string) *RoboLakeError {
	return &RoboLakeError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new RoboLakeError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *RoboLakeError {
	return &RoboLakeError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *RoboLakeError) WithDetails(details map[string]interface{}) *RoboLakeError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var re *RoboLakeError
	if errors.As(err, &re) {
		return re.Retryable
	}
	return false
}

// HasCode reports whether the error chain carries the given category and code.
func HasCode(err error, category ErrorCategory, code string) bool {
	var re *RoboLakeError
	if errors.As(err, &re) {
		return re.Category == category && re.Code == code
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a RoboLakeError.
func GetCategory(err error) ErrorCategory {
	var re *RoboLakeError
	if errors.As(err, &re) {
		return re.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a RoboLakeError.
func GetCode(err error) string {
	var re *RoboLakeError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewDecodeError(message string, cause error) *RoboLakeError {
	return Wrap(ErrCategoryDecode, CodeDecodeFailed, message, cause)
}

func NewCatalogError(code, message string) *RoboLakeError {
	return New(ErrCategoryCatalog, code, message)
}

func NewQueryError(message string, cause error) *RoboLakeError {
	return Wrap(ErrCategoryQuery, CodeQueryFailed, message, cause)
}

func NewStorageError(code, message string, cause error) *RoboLakeError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *RoboLakeError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
