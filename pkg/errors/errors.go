package errors

import (
	"fmt"
)

// ParseError represents a YAML parsing failure with optional line metadata.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error
}

// NewParseError constructs a ParseError.
func NewParseError(path string, line int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ParseError{Path: path, Line: line, Message: message, Err: err}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}

	if e.Line > 0 {
		return fmt.Sprintf("parse error: %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Path, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError captures configuration validation issues.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// PreconditionError indicates a step's required prior state is absent or
// conflicting, for example a resource that already exists without overwrite
// permission. No forward action of the step has run when this is raised.
type PreconditionError struct {
	Step    string
	Message string
	Err     error
}

// NewPreconditionError constructs a PreconditionError.
func NewPreconditionError(step, message string, err error) error {
	return &PreconditionError{Step: step, Message: message, Err: err}
}

func (e *PreconditionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Step != "" {
		return fmt.Sprintf("precondition failed for step %s: %s", e.Step, e.Message)
	}
	return fmt.Sprintf("precondition failed: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *PreconditionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ExecutionError represents a runtime failure while executing a step's
// forward action.
type ExecutionError struct {
	Step string
	Err  error
}

// NewExecutionError constructs an ExecutionError.
func NewExecutionError(step string, err error) error {
	return &ExecutionError{Step: step, Err: err}
}

func (e *ExecutionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Step != "" {
		return fmt.Sprintf("execution error on step %s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("execution error: %v", e.Err)
}

// Unwrap exposes the root error.
func (e *ExecutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ReversalError reports a rollback action that itself failed. Remaining
// reversals are still attempted; the affected resource may need manual
// operator intervention.
type ReversalError struct {
	Action string
	Err    error
}

// NewReversalError constructs a ReversalError.
func NewReversalError(action string, err error) error {
	return &ReversalError{Action: action, Err: err}
}

func (e *ReversalError) Error() string {
	if e == nil {
		return ""
	}
	if e.Action != "" {
		return fmt.Sprintf("reversal %q failed: %v", e.Action, e.Err)
	}
	return fmt.Sprintf("reversal failed: %v", e.Err)
}

// Unwrap exposes the underlying error.
func (e *ReversalError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WritePhase identifies where an atomic file write failed.
type WritePhase string

const (
	// PhasePrepare covers temp-file creation, writing, sync, chmod and
	// chown. A prepare failure leaves the target path untouched.
	PhasePrepare WritePhase = "prepare"
	// PhaseReplace covers the final rename onto the target path. After a
	// replace failure the visible state of the target is uncertain.
	PhaseReplace WritePhase = "replace"
)

// AtomicWriteError reports a failed atomic file write, tagged with the
// phase so operators know whether the target was left untouched.
type AtomicWriteError struct {
	Path  string
	Phase WritePhase
	Err   error
}

// NewAtomicWriteError constructs an AtomicWriteError for the given phase.
func NewAtomicWriteError(path string, phase WritePhase, err error) error {
	return &AtomicWriteError{Path: path, Phase: phase, Err: err}
}

func (e *AtomicWriteError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("atomic write of %s failed during %s: %v", e.Path, e.Phase, e.Err)
}

// Unwrap exposes the underlying error.
func (e *AtomicWriteError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// InterruptedError is raised when an interruption signal is observed at a
// step boundary. It triggers the same unwind path as an execution failure.
type InterruptedError struct {
	Step string
}

// NewInterruptedError constructs an InterruptedError.
func NewInterruptedError(step string) error {
	return &InterruptedError{Step: step}
}

func (e *InterruptedError) Error() string {
	if e == nil {
		return ""
	}
	if e.Step != "" {
		return fmt.Sprintf("interrupted before step %s", e.Step)
	}
	return "interrupted"
}
