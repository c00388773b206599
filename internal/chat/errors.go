package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned when a chat turn is attempted before a
	// credential has been configured for the session.
	ErrNotConfigured = errors.New("no API credential configured")
	// ErrCompletionFailed wraps completion gateway failures. The underlying
	// typed error is preserved so callers can branch on its kind.
	ErrCompletionFailed = errors.New("completion failed")
)

// ValidationError represents a validation error with a field name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}
