// Package errors defines the categorized error types used across the
// reconciliation service. Every user-facing failure carries a category, a
// stable code, an optional suggestion and structured context; categories map
// to process exit codes at the CLI boundary.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryFile           ErrorCategory = "file"
	CategoryParse          ErrorCategory = "parse"
	CategoryValidation     ErrorCategory = "validation"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryReconciliation ErrorCategory = "reconciliation"
	CategoryConcurrency    ErrorCategory = "concurrency"
	CategoryStorage        ErrorCategory = "storage"
	CategoryInternal       ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// File errors
	CodeFileNotFound   ErrorCode = "file_not_found"
	CodeFilePermission ErrorCode = "file_permission"

	// Parse errors
	CodeInvalidFormat ErrorCode = "invalid_format"
	CodeMissingColumn ErrorCode = "missing_column"
	CodeInvalidData   ErrorCode = "invalid_data"

	// Validation errors
	CodeInvalidAmount     ErrorCode = "invalid_amount"
	CodeInvalidDate       ErrorCode = "invalid_date"
	CodeInvalidSourceType ErrorCode = "invalid_source_type"
	CodeMissingField      ErrorCode = "missing_field"
	CodePeriodMismatch    ErrorCode = "period_mismatch"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeWeightSum     ErrorCode = "weight_sum"

	// Reconciliation errors
	CodeMatchingFailed  ErrorCode = "matching_failed"
	CodeSchemeMismatch  ErrorCode = "scheme_mismatch"
	CodeRecordsConsumed ErrorCode = "records_consumed"

	// Concurrency errors
	CodeConcurrentRun ErrorCode = "concurrent_run"

	// Storage errors
	CodeSessionNotFound ErrorCode = "session_not_found"
	CodeRecordNotFound  ErrorCode = "record_not_found"
	CodeStorageFailure  ErrorCode = "storage_failure"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
	CodeCancelled       ErrorCode = "cancelled"
)

// ReconcilerError is the base error type for all application errors
type ReconcilerError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *ReconcilerError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *ReconcilerError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *ReconcilerError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryReconciliation, CategoryInternal:
		return 5
	case CategoryStorage:
		return 6
	case CategoryConcurrency:
		return 7
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *ReconcilerError) WithContext(key string, value interface{}) *ReconcilerError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *ReconcilerError) WithSuggestion(suggestion string) *ReconcilerError {
	e.Suggestion = suggestion
	return e
}

// newError creates a ReconcilerError capturing the current stack
func newError(category ErrorCategory, code ErrorCode, message string, cause error) *ReconcilerError {
	e := &ReconcilerError{
		Category: category,
		Code:     code,
		Message:  message,
		Cause:    cause,
	}
	if tracer, ok := errors.WithStack(e).(interface{ StackTrace() errors.StackTrace }); ok {
		e.StackTrace = tracer.StackTrace()
	}
	return e
}

// NewFileError creates a file-related error
func NewFileError(code ErrorCode, message string, cause error) *ReconcilerError {
	return newError(CategoryFile, code, message, cause)
}

// NewParseError creates a parse-related error
func NewParseError(code ErrorCode, message string, cause error) *ReconcilerError {
	return newError(CategoryParse, code, message, cause)
}

// NewValidationError creates a validation-related error
func NewValidationError(code ErrorCode, message string, cause error) *ReconcilerError {
	return newError(CategoryValidation, code, message, cause)
}

// NewConfigurationError creates a configuration-related error
func NewConfigurationError(code ErrorCode, message string, cause error) *ReconcilerError {
	return newError(CategoryConfiguration, code, message, cause)
}

// NewReconciliationError creates a reconciliation-related error
func NewReconciliationError(code ErrorCode, message string, cause error) *ReconcilerError {
	return newError(CategoryReconciliation, code, message, cause)
}

// NewConcurrencyError creates a concurrency-related error
func NewConcurrencyError(code ErrorCode, message string, cause error) *ReconcilerError {
	return newError(CategoryConcurrency, code, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(code ErrorCode, message string, cause error) *ReconcilerError {
	return newError(CategoryStorage, code, message, cause)
}

// NewInternalError creates an internal error
func NewInternalError(code ErrorCode, message string, cause error) *ReconcilerError {
	return newError(CategoryInternal, code, message, cause)
}

// IsCategory checks whether err (or anything it wraps) is a ReconcilerError
// of the given category
func IsCategory(err error, category ErrorCategory) bool {
	var rerr *ReconcilerError
	if errors.As(err, &rerr) {
		return rerr.Category == category
	}
	return false
}

// AsReconcilerError extracts a ReconcilerError from anywhere in an error chain
func AsReconcilerError(err error) (*ReconcilerError, bool) {
	var rerr *ReconcilerError
	if errors.As(err, &rerr) {
		return rerr, true
	}
	return nil, false
}

// GetExitCode extracts the exit code from any error
func GetExitCode(err error) int {
	var rerr *ReconcilerError
	if errors.As(err, &rerr) {
		return rerr.GetExitCode()
	}
	return 1
}
