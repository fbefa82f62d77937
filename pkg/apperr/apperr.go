// Package apperr defines the error kinds the LMS core reports to its callers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the HTTP layer.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindIncompleteSubmission
	KindForbidden
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindIncompleteSubmission:
		return "incomplete_submission"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is a rejected transition. State is left unchanged whenever one is returned.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is lets errors.Is match on kind alone, e.g. errors.Is(err, apperr.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrValidation           = &Error{Kind: KindValidation}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrIncompleteSubmission = &Error{Kind: KindIncompleteSubmission}
	ErrForbidden            = &Error{Kind: KindForbidden}
	ErrConflict             = &Error{Kind: KindConflict}
)

func newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation reports missing or malformed input.
func Validation(format string, args ...interface{}) error {
	return newf(KindValidation, format, args...)
}

// NotFound reports an id that does not (or no longer) exist.
func NotFound(format string, args ...interface{}) error {
	return newf(KindNotFound, format, args...)
}

// IncompleteSubmission reports a quiz submit with unanswered questions.
func IncompleteSubmission(format string, args ...interface{}) error {
	return newf(KindIncompleteSubmission, format, args...)
}

// Forbidden reports an action the caller may not perform.
func Forbidden(format string, args ...interface{}) error {
	return newf(KindForbidden, format, args...)
}

// Conflict reports a state that does not allow the transition.
func Conflict(format string, args ...interface{}) error {
	return newf(KindConflict, format, args...)
}

// KindOf returns the kind of err, or 0 for infrastructure errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
