// Package domainerrors provides coded errors for the electoral domain.
//
// Services return these so the HTTP boundary can translate failure kinds
// into transport codes without inspecting error strings. Stores return
// sentinel errors (pkg/platform/sentinel); services wrap or translate them
// into coded errors here.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code enumerates the stable failure kinds surfaced to callers.
type Code string

const (
	// CodeForbidden: the requester lacks the required capability
	// (not the founding principal, not an active commission member,
	// not eligible to stand or vote).
	CodeForbidden Code = "forbidden"

	// CodeNotFound: a referenced authority, election, candidacy, or
	// ballot does not exist.
	CodeNotFound Code = "not_found"

	// CodeInvalidState: the operation was attempted outside its legal
	// phase (registering after nominations closed, certifying a
	// non-VOTING election, cancelling a terminal election).
	CodeInvalidState Code = "invalid_state"

	// CodeInvalidInput: structurally invalid input (member count out of
	// range, malformed time window, illegal ladder rung).
	CodeInvalidInput Code = "invalid_input"

	// CodeAlreadyVoted: the voter already holds a ballot in this
	// election. Never retried; a cast ballot is final.
	CodeAlreadyVoted Code = "already_voted"

	// CodeAlreadyCertified: the election already carries a certified
	// result. Certification is write-once and never recomputes.
	CodeAlreadyCertified Code = "already_certified"

	// CodeOutsideWindow: a ballot cast attempted before votingStart or
	// after votingEnd.
	CodeOutsideWindow Code = "outside_window"

	// CodeConflict: a concurrent write lost a uniqueness race that is
	// not one of the domain-specific conflicts above.
	CodeConflict Code = "conflict"

	// CodeUnauthorized: no authenticated principal on the request.
	CodeUnauthorized Code = "unauthorized"

	// CodeBadRequest: malformed request at the transport boundary.
	CodeBadRequest Code = "bad_request"

	// CodeInternal: unexpected infrastructure failure. The boundary
	// never leaks the underlying description for these.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error. It optionally wraps a cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a coded error with a human-readable reason.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted reason.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code carried by err, or CodeInternal when err is not
// a coded error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the human-readable reason carried by err, or an empty
// string when err is not a coded error.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
