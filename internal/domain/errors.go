package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrNotFound      = errors.New("not found")
	ErrInvalidCode   = errors.New("invalid code")
	ErrCodeExpired   = errors.New("code expired")
	ErrStorage       = errors.New("storage error")
	ErrDelivery      = errors.New("delivery error")
	ErrMisconfigured = errors.New("server misconfigured")
	// ErrConflict is returned by stores when a conditional write finds the record changed.
	ErrConflict = errors.New("conflict")
)

// Error pairs an error kind with a message that is safe to show to API clients.
// The optional cause stays server-side.
type Error struct {
	Kind    error
	Message string
	Err     error
}

// NewError returns an Error of the given kind with no underlying cause.
func NewError(kind error, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// WrapError returns an Error of the given kind that wraps cause.
func WrapError(kind error, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
