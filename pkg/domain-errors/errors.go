// Package domainerrors provides coded errors for the service layer.
//
// Stores and adapters return sentinel errors (pkg/platform/sentinel) or plain
// wrapped errors; services translate those into coded errors so callers can
// branch on the code without string matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeInvalidInput marks malformed input rejected at a trust boundary.
	CodeInvalidInput Code = "invalid_input"
	// CodeBadRequest marks a structurally valid but unusable request.
	CodeBadRequest Code = "bad_request"
	// CodeValidation marks a request that failed business validation.
	CodeValidation Code = "validation"
	// CodeNotFound marks an operation referencing a record that does not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict marks a uniqueness or state conflict.
	CodeConflict Code = "conflict"
	// CodeInvariantViolation marks a broken aggregate invariant.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeExternal marks a failure reported by an external system, transport
	// level or in-band. The message names the origin system.
	CodeExternal Code = "external"
	// CodeInternal marks an unexpected infrastructure failure.
	CodeInternal Code = "internal"
)

// Error is a coded domain error, optionally wrapping a cause.
type Error struct {
	code Code
	msg  string
	err  error
}

// New builds a coded error with no underlying cause.
func New(code Code, msg string) *Error {
	return &Error{code: code, msg: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{code: code, msg: msg, err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the classification of this error.
func (e *Error) Code() Code {
	return e.code
}

// HasCode reports whether err or any error in its chain carries the code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.code == code {
			return true
		}
		err = de.err
		if err == nil {
			return false
		}
	}
	return false
}

// CodeOf returns the code of the outermost coded error in the chain, or
// CodeInternal when the chain carries no code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.code
	}
	return CodeInternal
}
