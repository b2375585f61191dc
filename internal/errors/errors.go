package errors

import (
	"fmt"
	"net/http"

	crdb "github.com/cockroachdb/errors"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeInvalidInput      ErrorType = "invalid_input"
	ErrorTypeMalformedTemplate ErrorType = "malformed_template"
	ErrorTypeNoImagesFound     ErrorType = "no_images_found"
	ErrorTypeDecodeFailed      ErrorType = "decode_failed"
	ErrorTypeStorage           ErrorType = "storage"
	ErrorTypeTimeout           ErrorType = "timeout"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeInternal          ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	Path       string    `json:"path,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

func newAppError(t ErrorType, status int, message string, cause error) *AppError {
	if cause != nil {
		cause = crdb.WithStackDepth(cause, 2)
	}
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: status,
		Cause:      cause,
	}
}

// NewInvalidInputError reports a malformed region or an image of the wrong shape.
func NewInvalidInputError(message string, cause error) *AppError {
	return newAppError(ErrorTypeInvalidInput, http.StatusBadRequest, message, cause)
}

// NewMalformedTemplateError reports an unparseable persisted region list.
func NewMalformedTemplateError(message string, cause error) *AppError {
	return newAppError(ErrorTypeMalformedTemplate, http.StatusBadRequest, message, cause)
}

// NewNoImagesFoundError reports an empty batch source.
func NewNoImagesFoundError(folder string) *AppError {
	err := newAppError(ErrorTypeNoImagesFound, http.StatusNotFound,
		fmt.Sprintf("no matching images in %s", folder), nil)
	err.Path = folder
	return err
}

// NewDecodeFailedError wraps a decoder failure for the given file.
func NewDecodeFailedError(path string, cause error) *AppError {
	err := newAppError(ErrorTypeDecodeFailed, http.StatusUnprocessableEntity,
		fmt.Sprintf("failed to decode %s", path), cause)
	err.Path = path
	return err
}

// NewStorageError creates a new template storage error
func NewStorageError(message string, cause error) *AppError {
	return newAppError(ErrorTypeStorage, http.StatusBadGateway, message, cause)
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, cause error) *AppError {
	return newAppError(ErrorTypeTimeout, http.StatusGatewayTimeout, message, cause)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *AppError {
	return newAppError(ErrorTypeNotFound, http.StatusNotFound, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, http.StatusInternalServerError, message, cause)
}

// WithDetails attaches human readable details to the error.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithHint attaches an operator hint; hints survive wrapping and are read back with Hints.
func WithHint(err error, hint string) error {
	return crdb.WithHint(err, hint)
}

// Hints returns the hints attached anywhere in the error chain, one per line.
func Hints(err error) string {
	return crdb.FlattenHints(err)
}

// As finds the first AppError in the chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if crdb.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType checks if the error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	if appErr, ok := As(err); ok {
		return appErr.Type == errorType
	}
	return false
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
