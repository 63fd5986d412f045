package api

import (
	"errors"
	"fmt"
)

// ErrAccessDenied marks a terminal authorization failure (401/403).
// Callers must not retry it.
var ErrAccessDenied = errors.New("access denied")

// StatusError is a non-2xx response that is neither an authorization
// failure nor obviously transient.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// TransientError wraps network failures and 5xx responses. The UI
// surfaces these with a "Try again" action.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "temporary failure: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the error may succeed on retry.
func IsRetryable(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}
