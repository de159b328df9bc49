// Package apperr defines the error taxonomy shared by services and HTTP handlers.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the HTTP boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindSessionExpired
	KindRegistrationRequired
	KindNotFound
	KindConflict
	KindRateLimited
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two *Error values by kind and message so wrapped sentinels compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func newErr(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

var (
	ErrUnauthenticated       = newErr(KindUnauthenticated, "authentication required")
	ErrSessionExpired        = newErr(KindSessionExpired, "session expired or invalid")
	ErrRegistrationRequired  = newErr(KindRegistrationRequired, "registration required")
	ErrNotFound              = newErr(KindNotFound, "not found")
	ErrInvalidOrExpiredCode  = newErr(KindValidation, "invalid or expired code")
	ErrPhoneMismatch         = newErr(KindValidation, "phone number does not match verified session")
	ErrAlreadyRegistered     = newErr(KindConflict, "phone number already registered")
	ErrInterestAlreadyActive = newErr(KindConflict, "interest already sent")
	ErrAlreadyResponded      = newErr(KindConflict, "interest already responded to")
	ErrDailyLimitExceeded    = newErr(KindRateLimited, "daily interest limit reached")
)

// Validation returns a validation error with the given message.
func Validation(msg string) *Error { return newErr(KindValidation, msg) }

// Internal wraps err as an internal error; the message is not shown to clients.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the kind of err, or KindInternal when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Status maps an error to its HTTP status code.
func Status(err error) int {
	switch KindOf(err) {
	case KindValidation, KindConflict, KindRateLimited:
		return http.StatusBadRequest
	case KindUnauthenticated, KindSessionExpired, KindRegistrationRequired:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the client-facing message for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "internal server error"
}
