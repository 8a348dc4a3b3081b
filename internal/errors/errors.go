package errors

import (
	"fmt"
)

// SearchError is the structured error type for code-search.
// It provides rich context for error handling, logging, and user presentation.
type SearchError struct {
	// Code is the unique error code (e.g., "ERR_204_CORRUPT_INDEX").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Model, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SearchError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with SearchError.
func (e *SearchError) Is(target error) bool {
	if t, ok := target.(*SearchError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *SearchError) WithDetail(key, value string) *SearchError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *SearchError) WithSuggestion(suggestion string) *SearchError {
	e.Suggestion = suggestion
	return e
}

// New creates a new SearchError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *SearchError {
	return &SearchError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a SearchError from an existing error.
// The error's message becomes the SearchError message.
func Wrap(code string, err error) *SearchError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// InvalidQuery creates a validation error for an unusable query.
func InvalidQuery(message string) *SearchError {
	return New(ErrCodeInvalidQuery, message, nil)
}

// StoreError creates an index store error carrying the index path.
func StoreError(message, indexPath string, cause error) *SearchError {
	return New(ErrCodeStoreIO, message, cause).
		WithDetail("index_path", indexPath)
}

// CorruptIndex creates a fatal error for an unreadable index, pointing
// the user at the directory to remove.
func CorruptIndex(indexPath string, cause error) *SearchError {
	return New(ErrCodeCorruptIndex, fmt.Sprintf("index at %s is corrupt", indexPath), cause).
		WithDetail("index_path", indexPath).
		WithSuggestion(fmt.Sprintf("delete %s and re-run to rebuild the index", indexPath))
}

// ModelError creates a model load error.
func ModelError(message string, cause error) *SearchError {
	return New(ErrCodeModelNotFound, message, cause).
		WithSuggestion("ensure the embedding model is present in the local model cache")
}

// EmbeddingError creates an internal error for a failed embedding batch.
func EmbeddingError(message string, cause error) *SearchError {
	return New(ErrCodeEmbeddingFailed, message, cause)
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*SearchError); ok {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a SearchError.
// Returns empty string if not a SearchError.
func GetCode(err error) string {
	if se, ok := err.(*SearchError); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from a SearchError.
// Returns empty string if not a SearchError.
func GetCategory(err error) Category {
	if se, ok := err.(*SearchError); ok {
		return se.Category
	}
	return ""
}
