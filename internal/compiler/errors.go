package compiler

import (
	"errors"
	"fmt"
)

// Compile error codes (E200-E299)
const (
	ErrMultipleStructural = "E201" // more than one structural directive on an element
	ErrInvalidExpression  = "E202" // expression does not parse
	ErrInvalidRepeat      = "E203" // repeat binding is not "<name> of <expr>"
	ErrDetachedStructural = "E204" // structural directive on an element without a parent
	ErrNilSubtree         = "E205" // nothing to compile
)

// CompileError is a configuration error found while compiling a template.
// Compilation is all-or-nothing: when Compile returns a CompileError the
// subtree is unchanged.
type CompileError struct {
	Code    string
	Attr    string // directive attribute, e.g. "[if]"
	Expr    string
	Path    string // element path, see dom.Path
	Message string
	Err     error
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	loc := e.Path
	if e.Attr != "" {
		loc += " " + e.Attr
	}
	if loc == "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, loc, e.Message)
}

// Unwrap returns the underlying error.
func (e *CompileError) Unwrap() error {
	return e.Err
}

// IsCompileError returns true if err is (or wraps) a CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// DigestError reports a directive whose expression failed during a digest
// or an event handler.
type DigestError struct {
	Directive string
	Expr      string
	Path      string
	Err       error
}

// Error implements the error interface.
func (e *DigestError) Error() string {
	return fmt.Sprintf("%s %s=%q: %v", e.Path, e.Directive, e.Expr, e.Err)
}

// Unwrap returns the underlying error.
func (e *DigestError) Unwrap() error {
	return e.Err
}

// IsDigestError returns true if err is (or wraps) a DigestError.
func IsDigestError(err error) bool {
	var de *DigestError
	return errors.As(err, &de)
}
