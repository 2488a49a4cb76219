package manifest

import (
	"errors"
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Error codes reported by Load and CompileComponent.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	ErrCodeInvalidTag      = "E301" // Tag is not a valid custom element name
	ErrCodeTemplate        = "E302" // Template missing, duplicated or unreadable
	ErrCodeStyle           = "E303" // Style duplicated or unreadable
	ErrCodeState           = "E304" // State is not a concrete struct
	ErrCodeDuplicateTag    = "E305" // Two components share a tag
	ErrCodeInvalidTemplate = "E306" // Template does not compile
)

// CompileError is a manifest problem, positioned in the CUE source when
// the position is known.
type CompileError struct {
	Code      string
	Component string
	Field     string
	Message   string
	Pos       token.Pos
	Err       error
}

func (e *CompileError) Error() string {
	where := e.Field
	if e.Component != "" {
		where = e.Component + "." + e.Field
	}
	if e.Field == "" {
		where = e.Component
	}
	msg := e.Message
	if where != "" {
		msg = where + ": " + msg
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// IsCompileError reports whether err is or wraps a *CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// Code returns the error code carried by err, or ErrCodeGeneric.
func Code(err error) string {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrCodeGeneric
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error, code, component, field string) error {
	if err == nil {
		return nil
	}
	ce := &CompileError{Code: code, Component: component, Field: field, Message: err.Error(), Err: err}

	// CUE errors may contain multiple errors; report the first.
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return ce
	}
	first := errs[0]
	ce.Message = first.Error()
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
