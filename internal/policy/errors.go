package policy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies policy failures.
type ErrorCode string

const (
	// ErrCodeInvalid indicates a malformed policy document.
	ErrCodeInvalid ErrorCode = "INVALID_POLICY"

	// ErrCodeRules indicates rules that do not parse or analyze.
	ErrCodeRules ErrorCode = "INVALID_RULES"

	// ErrCodeEval indicates a failure while evaluating rules.
	ErrCodeEval ErrorCode = "EVAL_FAILED"
)

// Error reports a policy that could not be loaded or evaluated.
type Error struct {
	Code    ErrorCode
	Policy  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Code))
	if e.Policy != "" {
		fmt.Fprintf(&sb, " (policy %q)", e.Policy)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// ViolationError reports a computation that breaks a policy.
type ViolationError struct {
	Policy      string
	Computation string
	Violations  []Violation
}

func (e *ViolationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("computation %q violates policy %q: %s", e.Computation, e.Policy, strings.Join(parts, "; "))
}

// IsViolation reports whether err is a *ViolationError.
func IsViolation(err error) bool {
	var ve *ViolationError
	return errors.As(err, &ve)
}
