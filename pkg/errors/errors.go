// Package errors provides common domain error types for the scribe application.
//
// This package defines sentinel errors for the few failure conditions the client
// recognizes. Callers wrap them with fmt.Errorf("...: %w", err) and test for them
// with the Is* helpers, which see through any number of wrapping layers.
//
// Usage:
//
//	import scerrors "github.com/otherjamesbrown/scribe-cli/pkg/errors"
//
//	// Return a domain error
//	return nil, fmt.Errorf("%w: backend returned %d", scerrors.ErrUploadFailed, code)
//
//	// Check for domain errors
//	if scerrors.IsUploadFailed(err) {
//	    // surface the single upload notice
//	}
package errors

import "errors"

// Domain errors - common sentinel errors for domain conditions.
var (
	// ErrUploadFailed covers every way an upload can fail: network errors,
	// non-2xx responses and response bodies of the wrong shape.
	ErrUploadFailed = errors.New("upload failed")

	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates invalid input or validation failure.
	ErrValidation = errors.New("validation error")

	// ErrInvalidState indicates the operation is not valid for the current state.
	ErrInvalidState = errors.New("invalid state")
)

// UploadFailedNotice is the one user-facing message shown for ErrUploadFailed.
const UploadFailedNotice = "Failed to process audio. Please check if the backend is running and your API key is set."

// IsUploadFailed reports whether any error in err's chain is ErrUploadFailed.
func IsUploadFailed(err error) bool {
	return errors.Is(err, ErrUploadFailed)
}

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidState reports whether any error in err's chain is ErrInvalidState.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}
