// Package apperr defines the error kinds shared by every layer.
//
// Errors are wrapped with fmt.Errorf("%w: detail", ErrX) and classified with
// KindOf at the edge (HTTP handlers, CLI).
package apperr

import (
	"context"
	"errors"
)

var (
	// ErrUnauthorized means the operation requires an identified requester.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the requester is identified but not allowed.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound means a referenced post or comment does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation means the input violates a domain rule.
	ErrValidation = errors.New("validation failed")
	// ErrConflict means a concurrent modification was detected; retryable.
	ErrConflict = errors.New("conflict")
	// ErrTransient means the store was unavailable or timed out; retryable.
	ErrTransient = errors.New("transient failure")
)

// Kind is a coarse error classification.
type Kind string

const (
	KindUnknown      Kind = "internal"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindTransient    Kind = "transient"
)

// KindOf classifies err. Context cancellation and deadlines count as transient.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrTransient),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return KindTransient
	default:
		return KindUnknown
	}
}

// Retryable reports whether the caller may retry the same operation.
func Retryable(err error) bool {
	k := KindOf(err)
	return k == KindConflict || k == KindTransient
}
