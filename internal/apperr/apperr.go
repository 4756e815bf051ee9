// Package apperr defines the closed set of error kinds the request pipeline
// reports, and the response status each kind maps to.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind int

const (
	// Unclassified is any error without a more specific kind.
	Unclassified Kind = iota
	// Validation is a request body that failed its action's input schema.
	Validation
	// NotFound is a missing route, action or record.
	NotFound
	// Conflict is a uniqueness violation.
	Conflict
	// BadRequest is a well-formed but semantically invalid request.
	BadRequest
	// Db is a store write that was not acknowledged.
	Db
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "ValidationError"
	case NotFound:
		return "NotFoundError"
	case Conflict:
		return "ConflictError"
	case BadRequest:
		return "BadRequestError"
	case Db:
		return "DbError"
	case Unclassified:
		return "InternalError"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Status returns the HTTP status code reported for k.
func (k Kind) Status() int {
	switch k {
	case Validation:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case BadRequest:
		return http.StatusBadRequest
	case Db:
		return http.StatusInternalServerError
	case Unclassified:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// Error is an error with a kind and a client-safe message.
type Error struct {
	Kind    Kind
	Message string

	// Field is the offending body field path for Validation errors.
	Field string

	// Err is the underlying cause. It is logged, never returned to clients.
	Err error
}

func (e *Error) Error() string {
	msg := e.Kind.String() + ": " + e.Message
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ValidationError reports an invalid body field.
func ValidationError(field, message string) *Error {
	return &Error{Kind: Validation, Field: field, Message: message}
}

// NotFoundf reports a missing route, action or record.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: NotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflictf reports a uniqueness violation.
func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: Conflict, Message: fmt.Sprintf(format, args...)}
}

// BadRequestf reports a semantically invalid request.
func BadRequestf(format string, args ...any) *Error {
	return &Error{Kind: BadRequest, Message: fmt.Sprintf(format, args...)}
}

// DbError wraps a store write failure.
func DbError(err error, message string) *Error {
	return &Error{Kind: Db, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain,
// or Unclassified if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unclassified
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
