// Package calcerr defines the error classes shared by the quantity, propagation
// and capture packages.
//
// Every error produced by errprop belongs to exactly one class. Callers test the
// class with errors.Is:
//
//	if errors.Is(err, calcerr.ErrDomain) {
//	    // division by zero, log of a non-positive value, ...
//	}
//
// Concrete errors are *Error values whose Unwrap returns the class sentinel, so
// package-level sentinels such as capture.ErrNoSession match both themselves and
// their class.
package calcerr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation reports malformed input: mismatched value/error lengths,
	// empty or non-finite construction inputs, out of range indexes, reserved
	// characters in names.
	ErrValidation = errors.New("validation error")

	// ErrDomain reports a mathematically undefined operation: division by zero,
	// logarithm or fractional power of a non-positive base, inverse-trig input
	// outside [-1, 1].
	ErrDomain = errors.New("domain error")

	// ErrUsage reports a capture lifecycle violation: starting a session twice,
	// ending a session that was never started, reconstructing an empty ledger.
	ErrUsage = errors.New("usage error")
)

// Error is a classified error.
type Error struct {
	// Kind is one of ErrValidation, ErrDomain or ErrUsage.
	Kind error
	// Op names the operation that failed (e.g. "div", "capture.start"). Optional.
	Op  string
	Msg string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Op != "" && e.Msg != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind.Error(), e.Msg)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind.Error())
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
	default:
		return e.Kind.Error()
	}
}

func (e *Error) Unwrap() error { return e.Kind }

// Validation builds an ErrValidation error for op.
func Validation(op, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Domain builds an ErrDomain error for op.
func Domain(op, format string, args ...any) error {
	return &Error{Kind: ErrDomain, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Usage builds an ErrUsage error for op.
func Usage(op, format string, args ...any) error {
	return &Error{Kind: ErrUsage, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Class returns the class sentinel of err, or nil when err is not classified.
func Class(err error) error {
	for _, kind := range []error{ErrValidation, ErrDomain, ErrUsage} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// ClassName returns a short label for err's class, suitable for metric
// attributes ("validation", "domain", "usage" or "other").
func ClassName(err error) string {
	switch Class(err) {
	case ErrValidation:
		return "validation"
	case ErrDomain:
		return "domain"
	case ErrUsage:
		return "usage"
	default:
		return "other"
	}
}
