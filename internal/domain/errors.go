package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a user-visible failure.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindForbidden    Kind = "forbidden"
	KindBlocked      Kind = "blocked"
	KindExpired      Kind = "expired"
	KindUnavailable  Kind = "unavailable"
	KindUnauthorized Kind = "unauthorized"
)

var defaultRemediation = map[Kind]string{
	KindValidation:   "check the request fields and try again",
	KindNotFound:     "check the id and try again",
	KindConflict:     "refresh and review the current state before retrying",
	KindForbidden:    "this action is not available to your account",
	KindBlocked:      "submit your pending reviews to continue",
	KindExpired:      "post a new request or browse open ones",
	KindUnavailable:  "retry in a few seconds",
	KindUnauthorized: "log in again to get a fresh token",
}

// DefaultRemediation is the hint shown for k when a failure carries none.
func DefaultRemediation(k Kind) string {
	if r, ok := defaultRemediation[k]; ok {
		return r
	}
	return "try again later or contact support"
}

// Error is a domain failure that is safe to show to the caller.
// Err holds the internal cause and is never rendered.
type Error struct {
	Kind        Kind
	Message     string
	Remediation string
	Details     map[string]any
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrBlocked      = &Error{Kind: KindBlocked}
	ErrExpired      = &Error{Kind: KindExpired}
	ErrUnavailable  = &Error{Kind: KindUnavailable}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
)

// withDefault fills an empty remediation from the kind's default.
func withDefault(e *Error) *Error {
	if e.Remediation == "" {
		e.Remediation = DefaultRemediation(e.Kind)
	}
	return e
}

func Validation(msg, remediation string) *Error {
	return withDefault(&Error{Kind: KindValidation, Message: msg, Remediation: remediation})
}

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found", Remediation: "check the id and try again"}
}

func Conflict(msg, remediation string) *Error {
	return withDefault(&Error{Kind: KindConflict, Message: msg, Remediation: remediation})
}

func Forbidden(msg, remediation string) *Error {
	return withDefault(&Error{Kind: KindForbidden, Message: msg, Remediation: remediation})
}

func Blocked(msg, remediation string, details map[string]any) *Error {
	return withDefault(&Error{Kind: KindBlocked, Message: msg, Remediation: remediation, Details: details})
}

func Expired(msg string) *Error {
	return withDefault(&Error{Kind: KindExpired, Message: msg})
}

func Unauthorized(msg, remediation string) *Error {
	return withDefault(&Error{Kind: KindUnauthorized, Message: msg, Remediation: remediation})
}

func Unavailable(cause error) *Error {
	return &Error{Kind: KindUnavailable, Message: "service temporarily unavailable", Remediation: DefaultRemediation(KindUnavailable), Err: cause}
}

// KindOf returns the kind of err, or "" if it is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
