// Package apperr classifies operation errors so the API layer can map them
// to HTTP statuses and clients can distinguish "you are blocked" from plain
// validation failures.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies the class of an operation error.
type Kind int

const (
	KindInternal   Kind = iota // unclassified / store failure
	KindValidation             // missing or malformed input
	KindPermission             // blocked by relationship state
	KindNotFound               // referenced user/record does not exist
	KindConflict               // violates a relationship invariant
	KindUpstream               // collaborator (blob store, AI) failed
)

// Error is an operation error with a classification.
type Error struct {
	Kind Kind
	Msg  string
	Err  error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Validation is shorthand for New(KindValidation, msg).
func Validation(msg string) *Error { return New(KindValidation, msg) }

// Permission is shorthand for New(KindPermission, msg).
func Permission(msg string) *Error { return New(KindPermission, msg) }

// NotFound is shorthand for New(KindNotFound, msg).
func NotFound(msg string) *Error { return New(KindNotFound, msg) }

// Conflict is shorthand for New(KindConflict, msg).
func Conflict(msg string) *Error { return New(KindConflict, msg) }

// Upstream classifies a collaborator failure.
func Upstream(msg string, err error) *Error { return Wrap(KindUpstream, msg, err) }

// Internal classifies a store or infrastructure failure.
func Internal(msg string, err error) *Error { return Wrap(KindInternal, msg, err) }

// KindOf returns the Kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error to the HTTP status the REST layer should return.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindPermission:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the user-facing message for err. Internal causes are not
// leaked to clients.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Msg
	}
	return "internal error"
}
