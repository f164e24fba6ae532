// Package apperr carries the error kinds every core operation fails with.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation        Kind = "VALIDATION"
	KindNotFound          Kind = "NOT_FOUND"
	KindUnauthenticated   Kind = "UNAUTHENTICATED"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindInvalidState      Kind = "INVALID_STATE"
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"
	KindExternalFailure   Kind = "EXTERNAL_FAILURE"
	KindInternal          Kind = "INTERNAL"
)

// Error is a classified failure. Msg is safe to show to the caller,
// Err (if any) is the underlying cause and only goes to logs.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinels like ErrNotFound
// work with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Msg == "" {
		return t.Kind == e.Kind
	}
	return t.Kind == e.Kind && t.Msg == e.Msg
}

// Kind sentinels for errors.Is.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrUnauthenticated   = &Error{Kind: KindUnauthenticated}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrExternalFailure   = &Error{Kind: KindExternalFailure}
	ErrInternal          = &Error{Kind: KindInternal}
)

// Specific failures referenced across packages.
var (
	EmptyCart         = &Error{Kind: KindValidation, Msg: "cart is empty"}
	SignatureMismatch = &Error{Kind: KindValidation, Msg: "payment verification failed"}
	AmountMismatch    = &Error{Kind: KindValidation, Msg: "payment amount does not match cart total"}
)

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Unauthenticated(msg string) error {
	return &Error{Kind: KindUnauthenticated, Msg: msg}
}

func Unauthorized(format string, args ...any) error {
	return &Error{Kind: KindUnauthorized, Msg: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...any) error {
	return &Error{Kind: KindInvalidState, Msg: fmt.Sprintf(format, args...)}
}

func InsufficientStock(productID string) error {
	return &Error{Kind: KindInsufficientStock, Msg: fmt.Sprintf("insufficient stock for product %s", productID)}
}

func External(msg string, cause error) error {
	return &Error{Kind: KindExternalFailure, Msg: msg, Err: cause}
}

// Internal wraps a storage or programming fault. The caller-facing message
// is always generic.
func Internal(op string, cause error) error {
	return &Error{Kind: KindInternal, Msg: "internal error", Err: fmt.Errorf("%s: %w", op, cause)}
}

// KindOf classifies err. Unclassified errors are Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the caller-facing text for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Msg
	}
	return "internal error"
}
