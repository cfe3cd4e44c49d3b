package render

import (
	"errors"
	"fmt"
)

// NavigationError records a failed view acquisition. It never escapes the
// orchestrator as a return value; it is carried on the Outcome and rendered
// into the error view.
type NavigationError struct {
	Path  string
	NavID string
	Err   error
}

// Error implements the error interface.
func (e *NavigationError) Error() string {
	if e.NavID != "" {
		return fmt.Sprintf("navigation to %s failed (nav=%s): %v", e.Path, e.NavID, e.Err)
	}
	return fmt.Sprintf("navigation to %s failed: %v", e.Path, e.Err)
}

// Unwrap returns the underlying acquisition error.
func (e *NavigationError) Unwrap() error {
	return e.Err
}

// IsNavigationError reports whether err is (or wraps) a NavigationError.
func IsNavigationError(err error) bool {
	var ne *NavigationError
	return errors.As(err, &ne)
}
