// Package xerrors collects the typed sentinel error families used
// internally by the execution layers before they are flattened into a
// diagnostic.Diagnostic at the capability/scheduler boundary (§7, §9).
package xerrors

import "fmt"

// ValidationError indicates a capability input failed its declared rules
// (go-playground/validator/v10 tag or type coercion) before the construct executed.
type ValidationError struct {
	Construct string
	Field     string
	Err       error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(construct, field string, err error) error {
	return &ValidationError{Construct: construct, Field: field, Err: err}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s.%s: %v", e.Construct, e.Field, e.Err)
	}
	return fmt.Sprintf("validation error: %s: %v", e.Construct, e.Err)
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ExecutionError wraps a failure raised by a capability phase function
// (check_executability, run_execution, build_background_task, ...).
type ExecutionError struct {
	Construct string
	Phase     string
	Err       error
}

// NewExecutionError constructs an ExecutionError.
func NewExecutionError(construct, phase string, err error) error {
	return &ExecutionError{Construct: construct, Phase: phase, Err: err}
}

func (e *ExecutionError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("execution error: %s[%s]: %v", e.Construct, e.Phase, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StateError indicates a signer-store or result-cache invariant was
// violated (double check-out, unknown construct, corrupt snapshot).
type StateError struct {
	Message string
	Err     error
}

// NewStateError constructs a StateError.
func NewStateError(message string, err error) error {
	return &StateError{Message: message, Err: err}
}

func (e *StateError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("state error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("state error: %s", e.Message)
}

func (e *StateError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
