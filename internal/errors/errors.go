package errors

import (
	"errors"
	"fmt"
)

// RagError is the structured error type for amanrag.
// It provides rich context for error handling, logging, and user presentation.
type RagError struct {
	// Code is the unique error code (e.g., "ERR_401_INVALID_INPUT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *RagError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *RagError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with RagError.
func (e *RagError) Is(target error) bool {
	if t, ok := target.(*RagError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *RagError) WithDetail(key, value string) *RagError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new RagError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *RagError {
	return &RagError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a RagError from an existing error.
// The error's message becomes the RagError message.
func Wrap(code string, err error) *RagError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// InvalidInput creates a validation error for malformed or empty input.
// These are always surfaced to the caller, never swallowed.
func InvalidInput(message string) *RagError {
	return New(ErrCodeInvalidInput, message, nil)
}

// UnsupportedStrategy creates an error for an unknown segmentation strategy.
func UnsupportedStrategy(name string) *RagError {
	return New(ErrCodeUnsupportedStrategy,
		fmt.Sprintf("unsupported chunking strategy: %q", name), nil)
}

// UnsupportedMode creates an error for an unknown retrieval mode.
func UnsupportedMode(name string) *RagError {
	return New(ErrCodeUnsupportedMode,
		fmt.Sprintf("unsupported retrieval mode: %q", name), nil)
}

// Collaborator wraps a failure from an external collaborator (storage,
// embedding, reranker). The code selects the specific 5xx collaborator code.
func Collaborator(code string, message string, cause error) *RagError {
	if !collaboratorCodes[code] {
		code = ErrCodeCollaborator
	}
	return New(code, message, cause)
}

// LoopGuard creates a fatal error for a segmentation loop that failed to make
// forward progress. This indicates a configuration bug such as
// chunk_overlap >= chunk_size and must never be silently truncated.
func LoopGuard(message string) *RagError {
	return New(ErrCodeLoopGuard, message, nil)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *RagError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *RagError {
	return New(ErrCodeInternal, message, cause)
}

// IsInvalidInput checks if an error is an input validation error.
func IsInvalidInput(err error) bool {
	var re *RagError
	if errors.As(err, &re) {
		return re.Category == CategoryValidation
	}
	return false
}

// IsCollaborator checks if an error is a recoverable collaborator failure.
func IsCollaborator(err error) bool {
	var re *RagError
	if errors.As(err, &re) {
		return collaboratorCodes[re.Code]
	}
	return false
}

// IsLoopGuard checks if an error is a segmentation loop-guard failure.
func IsLoopGuard(err error) bool {
	return GetCode(err) == ErrCodeLoopGuard
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var re *RagError
	if errors.As(err, &re) {
		return re.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	var re *RagError
	if errors.As(err, &re) {
		return re.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a RagError.
// Returns empty string if not a RagError.
func GetCode(err error) string {
	var re *RagError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// GetCategory extracts the category from a RagError.
// Returns empty string if not a RagError.
func GetCategory(err error) Category {
	var re *RagError
	if errors.As(err, &re) {
		return re.Category
	}
	return ""
}
