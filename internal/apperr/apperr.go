// Package apperr defines the structured error type shared by all storefront
// services. Every failure carries a machine-readable kind and a human message;
// handlers map kinds to HTTP status codes without string matching.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindAuthRequired      Kind = "auth_required"
	KindNotFound          Kind = "not_found"
	KindValidation        Kind = "validation"
	KindInsufficientStock Kind = "insufficient_stock"
	KindInactiveProduct   Kind = "inactive_product"
	KindAmountMismatch    Kind = "amount_mismatch"
	KindAlreadyProcessed  Kind = "already_processed"
	KindCartEmpty         Kind = "cart_empty"
	KindUnexpected        Kind = "unexpected"
)

// Error is a classified failure with a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	// Stock holds the current stock level for KindInsufficientStock so the
	// caller can display it.
	Stock int
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two apperr errors by kind, so sentinel-style checks like
// errors.Is(err, apperr.New(apperr.KindNotFound, "")) work.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an Error with a kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error while preserving it for errors.Is/As.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// AuthRequired signals a missing caller identity.
func AuthRequired() *Error {
	return New(KindAuthRequired, "authentication required")
}

// InsufficientStock names the offending product and reports its current stock.
func InsufficientStock(productName string, stock int) *Error {
	return &Error{
		Kind:    KindInsufficientStock,
		Message: fmt.Sprintf("insufficient stock for %s (current stock: %d)", productName, stock),
		Stock:   stock,
	}
}

// KindOf extracts the kind from err, or KindUnexpected for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
