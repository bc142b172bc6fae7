package tracing

import (
	"errors"
	"fmt"
)

// TraceError reports a failure to turn a callable into a computation.
//
// Trace errors include:
//   - Arity: callable and declared parameter disagree
//   - Type mismatch: placeholder or return value cannot be represented
//   - Untraced callable: the callable failed before producing a value
//   - Strategy violation: a value breaks the active strategy's rules
//   - No active context: an operation needed a context and the stack was empty
type TraceError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Path locates the offending part of a lifted value ("[1].weights").
	// Empty when the error is not about a specific value.
	Path string

	// Cause is the underlying error, if any.
	Cause error
}

// ErrorCode categorizes trace errors.
type ErrorCode string

const (
	// ErrCodeArity indicates the callable's arity disagrees with the declared parameter.
	ErrCodeArity ErrorCode = "ARITY"

	// ErrCodeTypeMismatch indicates a value that cannot be represented in the IR.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeUntracedCallable indicates the callable errored or panicked.
	ErrCodeUntracedCallable ErrorCode = "UNTRACED_CALLABLE"

	// ErrCodeStrategyViolation indicates a rule of the active strategy was broken.
	ErrCodeStrategyViolation ErrorCode = "STRATEGY_VIOLATION"

	// ErrCodeNoActiveContext indicates an empty context stack.
	ErrCodeNoActiveContext ErrorCode = "NO_ACTIVE_CONTEXT"
)

// Error implements the error interface.
func (e *TraceError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Path != "" {
		msg += " (at " + e.Path + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *TraceError) Unwrap() error {
	return e.Cause
}

func hasCode(err error, code ErrorCode) bool {
	var te *TraceError
	if errors.As(err, &te) {
		return te.Code == code
	}
	return false
}

// IsArityError returns true if err is an arity error.
// Uses errors.As to handle wrapped errors.
func IsArityError(err error) bool { return hasCode(err, ErrCodeArity) }

// IsTypeMismatch returns true if err is a type mismatch error.
func IsTypeMismatch(err error) bool { return hasCode(err, ErrCodeTypeMismatch) }

// IsUntraced returns true if err reports a callable that failed during tracing.
func IsUntraced(err error) bool { return hasCode(err, ErrCodeUntracedCallable) }

// IsStrategyViolation returns true if err is a strategy violation.
func IsStrategyViolation(err error) bool { return hasCode(err, ErrCodeStrategyViolation) }

// IsNoActiveContext returns true if err reports an empty context stack.
func IsNoActiveContext(err error) bool { return hasCode(err, ErrCodeNoActiveContext) }

// NewArityError creates a TraceError for an arity disagreement.
func NewArityError(format string, args ...any) *TraceError {
	return &TraceError{Code: ErrCodeArity, Message: fmt.Sprintf(format, args...)}
}

// NewTypeMismatchError creates a TraceError for an unrepresentable value at path.
func NewTypeMismatchError(path string, cause error, format string, args ...any) *TraceError {
	return &TraceError{
		Code:    ErrCodeTypeMismatch,
		Message: fmt.Sprintf(format, args...),
		Path:    path,
		Cause:   cause,
	}
}

// NewUntracedError creates a TraceError wrapping the callable's failure.
func NewUntracedError(cause error) *TraceError {
	return &TraceError{
		Code:    ErrCodeUntracedCallable,
		Message: "callable failed before producing a traceable value",
		Cause:   cause,
	}
}

// NewStrategyViolationError creates a TraceError for a broken strategy rule.
func NewStrategyViolationError(strategy StrategyKind, path string, format string, args ...any) *TraceError {
	return &TraceError{
		Code:    ErrCodeStrategyViolation,
		Message: fmt.Sprintf("%s strategy: %s", strategy, fmt.Sprintf(format, args...)),
		Path:    path,
	}
}

// NewNoActiveContextError creates a TraceError for an empty stack.
func NewNoActiveContextError(op string) *TraceError {
	return &TraceError{
		Code:    ErrCodeNoActiveContext,
		Message: op + " requires an active tracing context",
	}
}
