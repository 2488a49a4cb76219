package expr

import (
	"errors"
	"fmt"
)

// SyntaxError reports a malformed expression. Returned at parse time.
type SyntaxError struct {
	Src string
	Pos int
	Msg string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d in %q: %s", e.Pos, e.Src, e.Msg)
}

// EvalErrorCode categorizes evaluation failures.
type EvalErrorCode string

const (
	// ErrCodeReference indicates an identifier that resolves to nothing.
	ErrCodeReference EvalErrorCode = "REFERENCE"

	// ErrCodeType indicates an operation on a value of the wrong shape
	// (reading a property of nil, calling a non-function).
	ErrCodeType EvalErrorCode = "TYPE"

	// ErrCodeAssign indicates an assignment target that cannot be written.
	ErrCodeAssign EvalErrorCode = "ASSIGN"

	// ErrCodeCall indicates a called Go function returned an error or panicked.
	ErrCodeCall EvalErrorCode = "CALL"
)

// EvalError represents a failure while evaluating a parsed expression.
type EvalError struct {
	Code    EvalErrorCode
	Src     string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *EvalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s in %q: %v", e.Code, e.Message, e.Src, e.Err)
	}
	return fmt.Sprintf("%s: %s in %q", e.Code, e.Message, e.Src)
}

// Unwrap returns the underlying error.
func (e *EvalError) Unwrap() error {
	return e.Err
}

// IsSyntaxError returns true if err is (or wraps) a SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

// IsReferenceError returns true if err is an unresolved identifier error.
func IsReferenceError(err error) bool {
	var ee *EvalError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeReference
	}
	return false
}

// IsTypeError returns true if err is a type error.
func IsTypeError(err error) bool {
	var ee *EvalError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeType
	}
	return false
}

func typeErrorf(format string, args ...any) *EvalError {
	return &EvalError{Code: ErrCodeType, Message: fmt.Sprintf(format, args...)}
}
