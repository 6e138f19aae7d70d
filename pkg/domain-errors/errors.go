// Package domainerrors defines the engine's machine-readable error codes and
// the error type exchanged between services and the HTTP boundary.
//
// For infrastructure facts (missing rows, held claims) stores return sentinel
// errors from pkg/platform/sentinel; services translate those into domain
// errors here before they cross the boundary.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, machine-readable error identifier. Codes are part of the
// API contract; renaming one is a breaking change.
type Code string

const (
	// Request-shape errors, rejected before evaluation starts.
	CodeValidation Code = "validation_error"
	CodeBadRequest Code = "bad_request"

	// CodeRuleConflict signals a lifecycle invariant violation, e.g. two
	// production versions of the same rule. Fatal at the repository boundary.
	CodeRuleConflict Code = "rule_conflict"

	// CodeDependencyTimeout is surfaced when a master-data or rule lookup
	// exceeds its deadline and degraded handling is not possible.
	CodeDependencyTimeout Code = "dependency_timeout"

	CodeUnauthorized Code = "unauthorized"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeInternal     Code = "internal_error"
)

// Error carries a code, a human-readable message, and optional detail lines
// for the boundary envelope. TraceID is attached by the HTTP layer, not here.
type Error struct {
	Code    Code
	Message string
	Details []string
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// New constructs a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message while keeping the cause for
// errors.Is/As chains.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, wrapped: err}
}

// WithDetails returns a copy of the error with detail lines for the envelope.
func (e *Error) WithDetails(details ...string) *Error {
	dup := *e
	dup.Details = append(append([]string{}, e.Details...), details...)
	return &dup
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// that did not originate in domain logic.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps domain codes onto HTTP status codes for the boundary.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeRuleConflict:
		return http.StatusConflict
	case CodeDependencyTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
