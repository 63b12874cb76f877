package release

import (
	"fmt"
)

// StageError is the terminal error of a failed run. It names the stage that halted the run.
type StageError struct {
	Stage   Stage
	Message string
	Err     error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("release halted at %s: %s", e.Stage, e.Message)
}

// Unwrap returns the stage failure.
func (e *StageError) Unwrap() error {
	return e.Err
}
