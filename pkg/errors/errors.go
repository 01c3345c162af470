package errors

import (
	"errors"
	"fmt"
)

// Common application errors
var (
	// Input errors
	ErrInvalidInputData     = errors.New("invalid input data")
	ErrInvalidFormat        = errors.New("invalid output format")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrConfigurationLoad    = errors.New("failed to load configuration")

	// Privacy errors
	ErrPrivacyViolation = errors.New("privacy violation")

	// Internal errors
	ErrInternal       = errors.New("internal error")
	ErrNotImplemented = errors.New("not implemented")
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeSchema        ErrorType = "schema"
	ErrorTypeRange         ErrorType = "range"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypePrivacy       ErrorType = "privacy"
	ErrorTypeInternal      ErrorType = "internal"
)

// Type-level sentinels. errors.Is(err, ErrSchema) matches every schema error
// regardless of its code.
var (
	ErrSchema     = &AppError{Type: ErrorTypeSchema}
	ErrRange      = &AppError{Type: ErrorTypeRange}
	ErrValidation = &AppError{Type: ErrorTypeValidation}
)

// AppError represents an application-specific error with additional context
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Context    map[string]interface{} `json:"context,omitempty"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target. A target without a code
// matches on type alone.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if t.Code == "" {
		return e.Type == t.Type
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		HTTPStatus: getDefaultHTTPStatus(errType),
	}
}

// WrapError wraps an existing error with application context
func WrapError(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		Cause:      err,
		HTTPStatus: getDefaultHTTPStatus(errType),
	}
}

// NewValidationError creates a validation error
func NewValidationError(code, message string) *AppError {
	return NewAppError(ErrorTypeValidation, code, message)
}

// NewSchemaError creates a schema error for the named column.
func NewSchemaError(code, column, message string) *AppError {
	return NewAppError(ErrorTypeSchema, code, message).WithContext("column", column)
}

// NewRangeError creates a range error for the named column.
func NewRangeError(code, column, message string) *AppError {
	return NewAppError(ErrorTypeRange, code, message).WithContext("column", column)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, CodeInternalError, message)
}

// IsSchemaError reports whether err is, or wraps, a schema error.
func IsSchemaError(err error) bool {
	return errors.Is(err, ErrSchema)
}

// IsRangeError reports whether err is, or wraps, a range error.
func IsRangeError(err error) bool {
	return errors.Is(err, ErrRange)
}

// IsValidationError reports whether err is, or wraps, a validation error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// HTTPStatusOf returns the HTTP status carried by an AppError in err's
// chain, or 500.
func HTTPStatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return 500
}

// getDefaultHTTPStatus returns the default HTTP status for an error type
func getDefaultHTTPStatus(errType ErrorType) int {
	switch errType {
	case ErrorTypeValidation, ErrorTypeSchema:
		return 400
	case ErrorTypeRange:
		return 422
	case ErrorTypePrivacy:
		return 403
	case ErrorTypeConfiguration:
		return 503
	default:
		return 500
	}
}

// ErrorResponse represents an error response for APIs
type ErrorResponse struct {
	Error     *AppError `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp string    `json:"timestamp"`
	Path      string    `json:"path,omitempty"`
}

// Error codes for different error scenarios
const (
	// Validation error codes
	CodeInvalidInput    = "INVALID_INPUT"
	CodeInvalidK        = "INVALID_K"
	CodeInvalidMaxSteps = "INVALID_MAX_STEPS"
	CodeNoColumns       = "NO_COLUMNS"
	CodeInvalidFormat   = "INVALID_FORMAT"
	CodeRequestTooLarge = "REQUEST_TOO_LARGE"

	// Schema error codes
	CodeColumnMissing   = "SCHEMA_COLUMN_MISSING"
	CodeNonNumeric      = "SCHEMA_NON_NUMERIC"
	CodeColumnLength    = "SCHEMA_COLUMN_LENGTH"
	CodeDuplicateColumn = "SCHEMA_DUPLICATE_COLUMN"
	CodeHeaderMissing   = "SCHEMA_HEADER_MISSING"

	// Range error codes
	CodeBinCount      = "RANGE_BIN_COUNT"
	CodeDegenerate    = "RANGE_DEGENERATE"
	CodeValueOutOfBin = "RANGE_VALUE_OUT_OF_BINS"

	// Privacy error codes
	CodeKAnonymityViolated = "K_ANONYMITY_VIOLATED"

	// Internal error codes
	CodeInternalError = "INTERNAL_ERROR"
)
