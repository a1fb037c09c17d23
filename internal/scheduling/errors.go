package scheduling

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindNotFound
	KindAccessDenied
	KindConflict
	KindInvalidState
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad request"
	case KindNotFound:
		return "not found"
	case KindAccessDenied:
		return "access denied"
	case KindConflict:
		return "conflict"
	case KindInvalidState:
		return "invalid state"
	}
	return "internal"
}

// Error is returned by every lifecycle operation. Match on kind with
// errors.Is(err, ErrNotFound) and friends.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

var (
	ErrBadRequest   = &Error{Kind: KindBadRequest}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrAccessDenied = &Error{Kind: KindAccessDenied}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrInvalidState = &Error{Kind: KindInvalidState}
)

// storage sentinels, returned by Repository implementations
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateSlot  = errors.New("doctor already has a scheduled appointment at this time")
	ErrStaleWrite     = errors.New("appointment changed since it was read")
	ErrDuplicateEmail = errors.New("email already registered")
)

func badRequest(format string, args ...any) error {
	return &Error{Kind: KindBadRequest, Msg: fmt.Sprintf(format, args...)}
}

func notFound(msg string) error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

func accessDenied(msg string) error {
	return &Error{Kind: KindAccessDenied, Msg: msg}
}

func invalidState(msg string) error {
	return &Error{Kind: KindInvalidState, Msg: msg}
}

func internal(op string, err error) error {
	return &Error{Kind: KindInternal, Msg: op, Err: err}
}

// KindOf extracts the Kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message is the caller-safe text of err; internal causes are not exposed.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		if e.Msg != "" {
			return e.Msg
		}
		return e.Kind.String()
	}
	return "internal error"
}
