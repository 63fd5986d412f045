package cli

import "fmt"

// Exit codes for scripted callers.
const (
	ExitCodeFailure = 1
	ExitCodeAuth    = 3
)

// ExitError carries an exit code out of a command.
type ExitError struct {
	Code    int
	Err     error
	Printed bool
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Exitf builds an ExitError from a format string.
func Exitf(code int, format string, args ...any) error {
	return &ExitError{Code: code, Err: fmt.Errorf(format, args...)}
}
