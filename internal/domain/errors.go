package domain

import "fmt"

// ValidationError reports invalid or inconsistent inputs: mismatched series
// lengths, non-positive variances, empty symbol intersections, bad enum
// values. It is fatal to the operation that raised it.
type ValidationError struct {
	msg string
}

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string { return e.msg }

// StateError reports an operation invoked out of order, such as querying
// derived statistics before the producing step has run.
type StateError struct {
	msg string
}

// Statef builds a StateError with a formatted message.
func Statef(format string, args ...any) *StateError {
	return &StateError{msg: fmt.Sprintf(format, args...)}
}

func (e *StateError) Error() string { return e.msg }
