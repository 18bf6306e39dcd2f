// Package apperr holds the error taxonomy shared by the voting, reputation,
// acceptance and notification packages. Handlers map a Kind to an HTTP
// status; everything else is an internal error.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	// KindValidation is a malformed request: bad direction, unknown target kind.
	KindValidation
	// KindConflict means the uniqueness race outlasted the retry budget.
	// The caller may retry the whole request.
	KindConflict
	// KindInvariant is a rejected state transition, e.g. accepting an
	// already accepted answer.
	KindInvariant
	// KindNotFound is a missing target, question, answer or user.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindInvariant:
		return "invariant_violation"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

var (
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrInvariant  = errors.New("invariant violation")
	ErrNotFound   = errors.New("not found")
)

type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrConflict) and friends match on Kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrConflict:
		return e.Kind == KindConflict
	case ErrInvariant:
		return e.Kind == KindInvariant
	case ErrNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

func Validation(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Invariant(op, format string, args ...any) error {
	return &Error{Kind: KindInvariant, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Conflict(op string, err error) error {
	return &Error{Kind: KindConflict, Op: op, Msg: "concurrent modification, retry the request", Err: err}
}

// KindOf reports the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Message returns the client-facing message of the first *Error in err's
// chain, without the wrapped cause.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		if appErr.Msg != "" {
			return appErr.Msg
		}
		return appErr.Kind.String()
	}
	return "internal server error"
}
