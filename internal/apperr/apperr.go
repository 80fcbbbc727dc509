// Package apperr defines the error taxonomy shared by the HTTP layer and
// the ride lifecycle. Handlers map kinds to status codes; everything else
// wraps with %w and lets the kind travel up the chain.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuth
	KindConflict
	KindNotFound
	KindUpstream
	KindTransition
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	case KindTransition:
		return "transition"
	}
	return "unknown"
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from anywhere in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func Validationf(format string, args ...any) *Error { return New(KindValidation, format, args...) }
func Authf(format string, args ...any) *Error       { return New(KindAuth, format, args...) }
func Conflictf(format string, args ...any) *Error   { return New(KindConflict, format, args...) }
func NotFoundf(format string, args ...any) *Error   { return New(KindNotFound, format, args...) }
func Transitionf(format string, args ...any) *Error { return New(KindTransition, format, args...) }
