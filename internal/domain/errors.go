package domain

import (
	"errors"
	"fmt"
)

// Kind groups sentinel errors by how a caller should react to them.
type Kind string

const (
	KindInternal     Kind = "internal"
	KindNotFound     Kind = "not_found"
	KindConstraint   Kind = "constraint"
	KindUnauthorized Kind = "unauthorized"
	KindConflict     Kind = "conflict"
	KindBusy         Kind = "busy"
	KindInvalidInput Kind = "invalid_input"
)

// kindError is a sentinel that knows its Kind and wire code.
type kindError struct {
	code string
	kind Kind
}

func (e *kindError) Error() string { return e.code }

func newSentinel(code string, kind Kind) error {
	return &kindError{code: code, kind: kind}
}

var (
	ErrNotFound = newSentinel("not_found", KindNotFound)

	ErrRoomFull           = newSentinel("room_full", KindConstraint)
	ErrInvalidCapacity    = newSentinel("invalid_capacity", KindConstraint)
	ErrInvariantViolation = newSentinel("invariant_violation", KindConstraint)

	ErrNotHost   = newSentinel("not_host", KindUnauthorized)
	ErrNotSharer = newSentinel("not_sharer", KindUnauthorized)
	ErrNotMember = newSentinel("not_member", KindUnauthorized)

	ErrAlreadyMember    = newSentinel("already_member", KindConflict)
	ErrAlreadyApplied   = newSentinel("already_applied", KindConflict)
	ErrRoomClosed       = newSentinel("room_closed", KindConflict)
	ErrRoomNotConfirmed = newSentinel("room_not_confirmed", KindConflict)
	ErrShareInUse       = newSentinel("share_in_use", KindConflict)

	ErrBusy        = newSentinel("busy", KindBusy)
	ErrRateLimited = newSentinel("rate_limited", KindBusy)

	ErrEmptyMessage = newSentinel("empty_message", KindInvalidInput)
	ErrNotConnected = newSentinel("not_connected", KindInvalidInput)
	ErrNotApplicant = newSentinel("not_applicant", KindNotFound)
	ErrInvalidInput = newSentinel("invalid_input", KindInvalidInput)
)

// Error carries the failing operation and the offending ids around a sentinel.
type Error struct {
	Op     string
	RoomID RoomID
	UserID UserID
	Err    error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.RoomID != "" {
		msg += " room=" + string(e.RoomID)
	}
	if e.UserID != "" {
		msg += " user=" + string(e.UserID)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fail wraps err with operation context. A nil err stays nil.
func Fail(op string, room RoomID, user UserID, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, RoomID: room, UserID: user, Err: err}
}

// Invalid is a shorthand for an InvalidInput failure with a reason.
func Invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, reason)
}

// KindOf reports the Kind of the first sentinel in err's chain.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindInternal
}

// CodeOf reports the wire code of the first sentinel in err's chain.
func CodeOf(err error) string {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.code
	}
	return "internal"
}

// IsRetryable reports whether the caller may retry against fresh state.
func IsRetryable(err error) bool {
	return KindOf(err) == KindBusy
}
