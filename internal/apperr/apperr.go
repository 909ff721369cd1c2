// Package apperr holds the error kinds shared by the registries and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error so callers can map it without string matching.
type Kind string

const (
	// KindNotFound is used when a referenced game, tournament or player does not exist.
	KindNotFound Kind = "not_found"
	// KindInvalidState is used when an operation does not fit the lifecycle state of the
	// entity, e.g. leaving a tournament that already started.
	KindInvalidState Kind = "invalid_state"
	// KindConflict is used when a player would end up in two live games at once.
	KindConflict Kind = "conflict"
	// KindForbidden is used when a player acts on an entity they are not part of.
	KindForbidden Kind = "forbidden"
	// KindUnexpected is returned by KindOf for errors that are not an Error.
	KindUnexpected Kind = "unexpected"
)

// Details holds additional error details that can be logged.
type Details map[string]any

// Error is the typed error returned by the orchestration core.
type Error struct {
	Kind    Kind
	Message string
	// Err is the optional underlying error.
	Err     error
	Details Details
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

// Is reports kind equality so that sentinel errors can be compared with errors.Is
// even after details were attached with With.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// With returns a copy of e carrying the given details.
func (e *Error) With(details Details) *Error {
	merged := make(Details, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &Error{Kind: e.Kind, Message: e.Message, Err: e.Err, Details: merged}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func InvalidState(message string) *Error {
	return &Error{Kind: KindInvalidState, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// Wrap creates an Error of the given kind around err.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the Kind of the first Error in err's chain or KindUnexpected.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// IsKind checks whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// DetailsOf returns the details of the first Error in err's chain.
func DetailsOf(err error) Details {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}
