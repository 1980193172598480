package relcomp

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors.
var (
	// ErrUnsupportedOperator is matched by every *UnsupportedOperatorError.
	ErrUnsupportedOperator = errors.New("relcomp: unsupported operator")

	// ErrInvariantViolation is matched by every *InvariantError.
	ErrInvariantViolation = errors.New("relcomp: compilation invariant violation")

	// ErrConcurrencyViolation is matched by every *ConcurrencyError.
	ErrConcurrencyViolation = errors.New("relcomp: concurrency or consistency violation")
)

// UnsupportedOperatorError is returned when an operator, or the shape of
// its arguments, cannot be expressed with the capabilities of the backend.
// It is not retried.
type UnsupportedOperatorError struct {
	// Operator is the name of the offending operator, e.g. "Range".
	Operator string
	// Reason describes the missing capability.
	Reason string
	// Path lists the ancestor operators, outermost first, when the
	// error was raised while compiling a child.
	Path []string
	// Err is an optional underlying error.
	Err error
}

// Error returns the error string.
func (e *UnsupportedOperatorError) Error() string {
	var sb strings.Builder
	sb.WriteString("relcomp: unsupported operator ")
	sb.WriteString(e.Operator)
	if len(e.Path) > 0 {
		fmt.Fprintf(&sb, " (in %s)", strings.Join(e.Path, " > "))
	}
	if e.Reason != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Reason)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

// Is reports whether the target error matches ErrUnsupportedOperator.
func (e *UnsupportedOperatorError) Is(err error) bool {
	return err == ErrUnsupportedOperator
}

// Unwrap returns the underlying error.
func (e *UnsupportedOperatorError) Unwrap() error {
	return e.Err
}

// NewUnsupportedOperatorError returns a new UnsupportedOperatorError.
func NewUnsupportedOperatorError(op, reason string) *UnsupportedOperatorError {
	return &UnsupportedOperatorError{Operator: op, Reason: reason}
}

// IsUnsupportedOperator returns true if the error is an UnsupportedOperatorError.
func IsUnsupportedOperator(err error) bool {
	if err == nil {
		return false
	}
	var e *UnsupportedOperatorError
	return errors.As(err, &e) || errors.Is(err, ErrUnsupportedOperator)
}

// InvariantError reports a compilation invariant violation: a defect in
// the compiler, such as a projection that does not match the header of
// the node it was compiled from.
type InvariantError struct {
	// Operator is the operator being compiled when the violation was detected.
	Operator string
	Message  string
}

// Error returns the error string.
func (e *InvariantError) Error() string {
	if e.Operator != "" {
		return fmt.Sprintf("relcomp: compilation invariant violation in %s: %s", e.Operator, e.Message)
	}
	return "relcomp: compilation invariant violation: " + e.Message
}

// Is reports whether the target error matches ErrInvariantViolation.
func (e *InvariantError) Is(err error) bool {
	return err == ErrInvariantViolation
}

// NewInvariantError returns a new InvariantError with a formatted message.
func NewInvariantError(op, format string, args ...any) *InvariantError {
	return &InvariantError{Operator: op, Message: fmt.Sprintf(format, args...)}
}

// IsInvariantViolation returns true if the error is an InvariantError.
func IsInvariantViolation(err error) bool {
	if err == nil {
		return false
	}
	var e *InvariantError
	return errors.As(err, &e) || errors.Is(err, ErrInvariantViolation)
}

// ConcurrencyError is returned by the execution layer when a persist
// statement affected a different number of rows than expected, e.g.
// because the row was removed or changed concurrently.
type ConcurrencyError struct {
	Table    string
	Expected int64
	Actual   int64
}

// Error returns the error string.
func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("relcomp: concurrency or consistency violation on %q: expected %d affected rows, got %d", e.Table, e.Expected, e.Actual)
}

// Is reports whether the target error matches ErrConcurrencyViolation.
func (e *ConcurrencyError) Is(err error) bool {
	return err == ErrConcurrencyViolation
}

// NewConcurrencyError returns a new ConcurrencyError.
func NewConcurrencyError(table string, expected, actual int64) *ConcurrencyError {
	return &ConcurrencyError{Table: table, Expected: expected, Actual: actual}
}

// IsConcurrencyViolation returns true if the error is a ConcurrencyError.
func IsConcurrencyViolation(err error) bool {
	if err == nil {
		return false
	}
	var e *ConcurrencyError
	return errors.As(err, &e) || errors.Is(err, ErrConcurrencyViolation)
}

// ConstraintError represents a database constraint violation error.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("relcomp: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// WithOperator records op as an ancestor of the operator that failed.
// Errors other than *UnsupportedOperatorError are returned unchanged.
func WithOperator(err error, op string) error {
	var e *UnsupportedOperatorError
	if !errors.As(err, &e) {
		return err
	}
	c := *e
	c.Path = append([]string{op}, e.Path...)
	return &c
}
