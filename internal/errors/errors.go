package errors

import (
	"errors"
	"fmt"
)

// ConvoError is the structured error type used across convorag.
type ConvoError struct {
	// Code is the unique error code (e.g., "ERR_404_NO_TEXT_EXTRACTED").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable hint for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *ConvoError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ConvoError) Unwrap() error {
	return e.Cause
}

// Is matches another ConvoError by code, so sentinel values such as
// ErrNoTextExtracted work with errors.Is.
func (e *ConvoError) Is(target error) bool {
	if t, ok := target.(*ConvoError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *ConvoError) WithDetail(key, value string) *ConvoError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *ConvoError) WithSuggestion(suggestion string) *ConvoError {
	e.Suggestion = suggestion
	return e
}

// New creates a ConvoError. Category, severity and the retryable flag are
// derived from the code.
func New(code string, message string, cause error) *ConvoError {
	return &ConvoError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a ConvoError from an existing error. Returns nil for a nil error.
func Wrap(code string, err error) *ConvoError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels for errors.Is checks. Matching is by code only.
var (
	ErrNoTextExtracted   = New(ErrCodeNoTextExtracted, "no text extracted", nil)
	ErrUnsupportedFormat = New(ErrCodeUnsupportedFormat, "unsupported file format", nil)
	ErrInvalidID         = New(ErrCodeInvalidID, "invalid identifier", nil)
	ErrLengthMismatch    = New(ErrCodeLengthMismatch, "chunks and vectors differ in length", nil)
)

// ConfigError creates a configuration error.
func ConfigError(message string, cause error) *ConvoError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// StorageError creates a persistence error.
func StorageError(message string, cause error) *ConvoError {
	return New(ErrCodePersistFailed, message, cause)
}

// EmbeddingError creates an embedding provider error.
func EmbeddingError(message string, cause error) *ConvoError {
	return New(ErrCodeEmbeddingFailed, message, cause)
}

// ValidationError creates an input validation error.
func ValidationError(message string, cause error) *ConvoError {
	return New(ErrCodeInvalidInput, message, cause)
}

// IsRetryable reports whether err (or anything it wraps) is a retryable ConvoError.
func IsRetryable(err error) bool {
	var ce *ConvoError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// GetCode extracts the error code, or "" when err is not a ConvoError.
func GetCode(err error) string {
	var ce *ConvoError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// GetCategory extracts the category, or "" when err is not a ConvoError.
func GetCategory(err error) Category {
	var ce *ConvoError
	if errors.As(err, &ce) {
		return ce.Category
	}
	return ""
}

func asConvo(err error, target **ConvoError) bool {
	return errors.As(err, target)
}
