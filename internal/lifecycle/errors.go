package lifecycle

import (
	"errors"
	"fmt"

	"nebnav/internal/models"
)

var (
	// ErrValidation marks malformed input rejected before any write.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an operation referencing an unknown task id.
	ErrNotFound = errors.New("task not found")
	// ErrIllegalTransition marks a transition not permitted from the task's
	// current state.
	ErrIllegalTransition = errors.New("illegal transition")
	// ErrCategorization marks a failed, timed-out, or unparsable brain-dump
	// extraction call. No tasks are created when it is returned.
	ErrCategorization = errors.New("categorization failed")
	// ErrStorage marks an underlying persistence failure. The triggering
	// operation has no partial effect.
	ErrStorage = errors.New("storage failure")
)

// TransitionError reports a rejected state transition with both endpoints.
type TransitionError struct {
	ID   string
	From models.State
	To   models.State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition for task %s: %s -> %s", e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
