// internal/runtime/errors.go

package runtime

import (
	"errors"
	"fmt"
)

var (
	ErrActionFailed = errors.New("action failed")
	ErrMaxFirings   = errors.New("maximum firings reached")
	ErrNotUpdatable = errors.New("fact does not accept attribute changes")
)

// ActionError wraps whatever a rule action returned or panicked with.
type ActionError struct {
	Rule  string
	Cause error
	// Panicked is set when the action panicked rather than returned an error.
	Panicked bool
}

func (e *ActionError) Error() string {
	if e.Panicked {
		return fmt.Sprintf("action of rule '%s' panicked: %v", e.Rule, e.Cause)
	}
	return fmt.Sprintf("action of rule '%s' failed: %v", e.Rule, e.Cause)
}

func (e *ActionError) Unwrap() []error {
	return []error{ErrActionFailed, e.Cause}
}
