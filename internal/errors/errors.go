package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Lector error code.
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"      // 400
	ErrNotFound            ErrorCode = "NOT_FOUND"            // 404
	ErrConfiguration       ErrorCode = "CONFIGURATION"        // 500
	ErrBookmarksUnreadable ErrorCode = "BOOKMARKS_UNREADABLE" // 500
	ErrFetchFailed         ErrorCode = "FETCH_FAILED"         // 502
	ErrSummarizationFailed ErrorCode = "SUMMARIZATION_FAILED" // 502
	ErrInternal            ErrorCode = "INTERNAL"             // 500
)

// LectorError represents a structured error with code, status, and details.
type LectorError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *LectorError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *LectorError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *LectorError {
	return &LectorError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing resource.
func NewNotFound(kind, identifier string) *LectorError {
	return &LectorError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewItemNotFound creates a 404 error for a reading list item id.
func NewItemNotFound(id int64) *LectorError {
	return &LectorError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "Item not found",
		Details: map[string]any{"kind": "item", "identifier": id},
	}
}

// NewBookmarksNotFound creates a 404 error for a missing bookmarks file.
func NewBookmarksNotFound(path string) *LectorError {
	return &LectorError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("Bookmarks file not found at %s", path),
		Details: map[string]any{"kind": "bookmarks", "identifier": path},
	}
}

// NewConfiguration creates a 500 error for unusable configuration.
func NewConfiguration(msg string) *LectorError {
	return &LectorError{
		Code:    ErrConfiguration,
		Status:  500,
		Message: msg,
	}
}

// NewUnknownProvider creates a configuration error for an unsupported LLM provider name.
func NewUnknownProvider(name string, known []string) *LectorError {
	return &LectorError{
		Code:    ErrConfiguration,
		Status:  500,
		Message: fmt.Sprintf("unknown LLM provider %q (supported: %v)", name, known),
		Details: map[string]any{"provider": name, "supported": known},
	}
}

// NewMissingCredential creates a configuration error when no API key resolves for a provider.
func NewMissingCredential(provider, envVar string) *LectorError {
	return &LectorError{
		Code:    ErrConfiguration,
		Status:  500,
		Message: fmt.Sprintf("%s API key not provided (set %s)", provider, envVar),
		Details: map[string]any{"provider": provider, "env": envVar},
	}
}

// NewBookmarksUnreadable wraps an extractor failure surfaced by sync.
func NewBookmarksUnreadable(err error) *LectorError {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
		var lErr *LectorError
		if stderrors.As(err, &lErr) {
			msg = lErr.Message
		}
	}
	return &LectorError{
		Code:    ErrBookmarksUnreadable,
		Status:  500,
		Message: "Error reading Safari bookmarks: " + msg,
		cause:   err,
	}
}

// NewFetchFailed creates a 502 error when a page could not be retrieved or yielded no text.
func NewFetchFailed(url string, err error) *LectorError {
	msg := fmt.Sprintf("failed to fetch %s", url)
	if err != nil {
		msg = fmt.Sprintf("failed to fetch %s: %v", url, err)
	}
	return &LectorError{
		Code:    ErrFetchFailed,
		Status:  502,
		Message: msg,
		Details: map[string]any{"url": url},
		cause:   err,
	}
}

// NewSummarizationFailed creates a 502 error for a provider or transport failure.
func NewSummarizationFailed(provider string, err error) *LectorError {
	msg := "summarization failed"
	if err != nil {
		msg = err.Error()
	}
	return &LectorError{
		Code:    ErrSummarizationFailed,
		Status:  502,
		Message: fmt.Sprintf("%s: %s", provider, msg),
		Details: map[string]any{"provider": provider},
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *LectorError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &LectorError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if err, or any error it wraps, is a LectorError with the given code.
func Is(err error, code ErrorCode) bool {
	for err != nil {
		if lErr, ok := err.(*LectorError); ok && lErr.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// As returns the outermost LectorError in err's chain, or a new internal error.
func As(err error) *LectorError {
	var lErr *LectorError
	if stderrors.As(err, &lErr) {
		return lErr
	}
	return NewInternal(err)
}
