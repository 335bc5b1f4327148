// Package errs defines the error taxonomy shared by all ledger services.
// Handlers classify errors by Kind to pick the HTTP status; services wrap
// lower-level failures with fmt.Errorf and %w so the kind survives.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error.
type Kind int

const (
	KindValidation Kind = iota
	KindInsufficientBalance
	KindNotFound
	KindAuthorization
	KindAlreadyUsed
	KindExpiration
	KindUpstreamProvider
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindInsufficientBalance:
		return "INSUFFICIENT_BALANCE"
	case KindNotFound:
		return "NOT_FOUND"
	case KindAuthorization:
		return "AUTHORIZATION"
	case KindAlreadyUsed:
		return "ALREADY_USED"
	case KindExpiration:
		return "EXPIRATION"
	case KindUpstreamProvider:
		return "UPSTREAM_PROVIDER"
	case KindConflict:
		return "CONFLICT"
	default:
		return "UNKNOWN"
	}
}

// Error is a classified domain error.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a classified error around a cause. The cause message is not
// exposed to the caller; the kind and message are.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Validation reports malformed or out-of-range input.
func Validation(format string, args ...interface{}) *Error {
	return Newf(KindValidation, format, args...)
}

// InsufficientBalance reports an available balance too low for the operation.
func InsufficientBalance(format string, args ...interface{}) *Error {
	return Newf(KindInsufficientBalance, format, args...)
}

// NotFound reports a missing record.
func NotFound(format string, args ...interface{}) *Error {
	return Newf(KindNotFound, format, args...)
}

// Authorization reports a caller that is not an allowed party.
func Authorization(format string, args ...interface{}) *Error {
	return Newf(KindAuthorization, format, args...)
}

// AlreadyUsed reports a single-use record that has already been consumed.
func AlreadyUsed(format string, args ...interface{}) *Error {
	return Newf(KindAlreadyUsed, format, args...)
}

// Expiration reports an action attempted on the wrong side of an
// expiration boundary.
func Expiration(format string, args ...interface{}) *Error {
	return Newf(KindExpiration, format, args...)
}

// Upstream reports a collaborator failure. The provider message is kept
// verbatim, only the kind is normalized.
func Upstream(message string, cause error) *Error {
	return Wrap(KindUpstreamProvider, message, cause)
}

// Conflict reports a lost concurrent atomic update race.
func Conflict(format string, args ...interface{}) *Error {
	return Newf(KindConflict, format, args...)
}

// KindOf extracts the kind of err, or reports ok=false for unclassified
// errors.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
