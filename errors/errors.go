package errors

import "errors"

// Sentinel errors for common error conditions
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates that a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates that input validation failed
	ErrInvalidInput = errors.New("invalid input")

	// ErrTransient marks a failure of an external service that may succeed on retry
	// (rate limits, 5xx responses, dropped connections).
	ErrTransient = errors.New("transient failure")
)

// IsTransient reports whether err is marked as retryable.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
