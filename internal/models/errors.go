package models

import "fmt"

// ErrorKind is a machine-readable error code for estimation failures.
type ErrorKind string

const (
	KindUnknown              ErrorKind = "UNKNOWN"
	KindNotFound             ErrorKind = "NOT_FOUND"
	KindForbidden            ErrorKind = "FORBIDDEN"
	KindInvalidMethod        ErrorKind = "INVALID_METHOD"
	KindInvalidCardValue     ErrorKind = "INVALID_CARD_VALUE"
	KindInvalidArgument      ErrorKind = "INVALID_ARGUMENT"
	KindDuplicateVote        ErrorKind = "DUPLICATE_VOTE"
	KindRoundAlreadyRevealed ErrorKind = "ROUND_ALREADY_REVEALED"
	KindSessionClosed        ErrorKind = "SESSION_CLOSED"
	KindInvalidTransition    ErrorKind = "INVALID_TRANSITION"
	KindItemNotEstimable     ErrorKind = "ITEM_NOT_ESTIMABLE"
	KindStaleState           ErrorKind = "STALE_STATE"
)

// Error is the domain error type. Every failed operation surfaces one of
// these so callers can render a precise message instead of a generic failure.
type Error struct {
	Kind    ErrorKind
	Field   string // offending field, when one exists
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// NewError creates a domain error with a kind and message.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NewFieldError creates a domain error pointing at a specific field.
func NewFieldError(kind ErrorKind, field, message string) *Error {
	return &Error{Kind: kind, Field: field, Message: message}
}

// WrapError creates a domain error wrapping an underlying cause.
func WrapError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the kind from an error chain, KindUnknown if none.
func KindOf(err error) ErrorKind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return KindUnknown
		}
		err = u.Unwrap()
	}
	return KindUnknown
}
