package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so that transports can render a distinct message.
type Kind string

const (
	KindCodeNotFound        Kind = "CODE_NOT_FOUND"
	KindCodeExpired         Kind = "CODE_EXPIRED"
	KindCodeInactive        Kind = "CODE_INACTIVE"
	KindLoginRequired       Kind = "LOGIN_REQUIRED"
	KindUsageLimitReached   Kind = "USAGE_LIMIT_REACHED"
	KindNotApplicableToCart Kind = "NOT_APPLICABLE_TO_CART"
	KindInvalidValue        Kind = "INVALID_VALUE"
	KindStockExceeded       Kind = "STOCK_EXCEEDED"
	KindPersistenceFailure  Kind = "PERSISTENCE_FAILURE"
	KindNotFound            Kind = "NOT_FOUND"
	KindConflict            Kind = "CONFLICT"
	KindInternal            Kind = "INTERNAL"
)

// IsPromoRejection reports whether the kind is one of the discount evaluator
// rejection reasons.
func (k Kind) IsPromoRejection() bool {
	switch k {
	case KindCodeNotFound, KindCodeExpired, KindCodeInactive, KindLoginRequired,
		KindUsageLimitReached, KindNotApplicableToCart:
		return true
	}
	return false
}

// Error is returned when an operation is rejected by business rules or a
// backing store fails.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func InvalidValue(format string, args ...interface{}) *Error {
	return Newf(KindInvalidValue, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return Newf(KindNotFound, format, args...)
}

func Persistence(message string, err error) *Error {
	return Wrap(KindPersistenceFailure, message, err)
}

// KindOf returns the kind carried by err, or KindInternal when err is not an
// *Error. A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
