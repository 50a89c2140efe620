package engine

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes why Execute failed to produce a result, mirroring
// the three outcomes §4.9 names.
type ErrorKind string

const (
	// CompileRejected means the EXPLAIN dry-run on the generated SQL failed.
	CompileRejected ErrorKind = "COMPILE_REJECTED"

	// ExecutionFailed means the analytical engine rejected the population
	// count or the main query during execution.
	ExecutionFailed ErrorKind = "EXECUTION_FAILED"

	// Canceled means a cancellation signal was observed during the
	// parse/plan dry-run, the population count, or the main execution.
	Canceled ErrorKind = "CANCELED"
)

// ExecutionError is returned by Execute whenever it cannot produce a
// Result. Message captures the underlying engine message verbatim.
type ExecutionError struct {
	Kind    ErrorKind
	Message string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, format string, args ...any) *ExecutionError {
	return &ExecutionError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsCompileRejected reports whether err is an ExecutionError with
// Kind == CompileRejected. Uses errors.As to handle wrapped errors.
func IsCompileRejected(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee) && ee.Kind == CompileRejected
}

// IsExecutionFailed reports whether err is an ExecutionError with
// Kind == ExecutionFailed.
func IsExecutionFailed(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee) && ee.Kind == ExecutionFailed
}

// IsCanceled reports whether err is an ExecutionError with
// Kind == Canceled.
func IsCanceled(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee) && ee.Kind == Canceled
}
