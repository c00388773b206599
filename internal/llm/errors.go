package llm

import "fmt"

// AuthError indicates a bad or missing credential. It is the only completion
// failure surfaced distinctly to the user, so the caller can prompt for
// re-configuration.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (status %d)", e.Status)
}

// TimeoutError indicates the completion call exceeded its hard timeout.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("completion timed out: %v", e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// RateLimitError indicates the provider rejected the call for rate limiting.
type RateLimitError struct {
	Status int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (status %d)", e.Status)
}

// TransportError indicates a network failure or an unexpected HTTP status.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport error: %v", e.Err)
	}
	return fmt.Sprintf("unexpected status %d", e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError indicates the provider returned a body that could
// not be interpreted as a completion.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed completion response: %s", e.Reason)
}
