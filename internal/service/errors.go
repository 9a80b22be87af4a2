package service

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindNotFound           ErrorKind = "NotFound"
	KindWindowClosed       ErrorKind = "WindowClosed"
	KindInsufficientToken  ErrorKind = "InsufficientToken"
	KindDuplicateBid       ErrorKind = "DuplicateBid"
	KindCapacityInvalid    ErrorKind = "CapacityInvalid"
	KindIntegrityViolation ErrorKind = "IntegrityViolation"
	KindStoreUnavailable   ErrorKind = "StoreUnavailable"
	KindInvalidState       ErrorKind = "InvalidState"
	KindInvalidArgument    ErrorKind = "InvalidArgument"
)

// Error is the failure type every service operation returns. Only
// KindStoreUnavailable signals a fault; the rest are business outcomes.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// holds for a more specific not-found error too.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
	ErrWindowClosed       = &Error{Kind: KindWindowClosed, Message: "bidding window is not open"}
	ErrInsufficientToken  = &Error{Kind: KindInsufficientToken, Message: "not enough tokens"}
	ErrDuplicateBid       = &Error{Kind: KindDuplicateBid, Message: "participant already bid on this opportunity"}
	ErrCapacityInvalid    = &Error{Kind: KindCapacityInvalid, Message: "capacity must be positive"}
	ErrIntegrityViolation = &Error{Kind: KindIntegrityViolation, Message: "ledger integrity violation"}
	ErrStoreUnavailable   = &Error{Kind: KindStoreUnavailable, Message: "store unavailable"}
	ErrInvalidState       = &Error{Kind: KindInvalidState, Message: "invalid state for this operation"}
	ErrInvalidArgument    = &Error{Kind: KindInvalidArgument, Message: "invalid argument"}

	ErrOpportunityNotFound = &Error{Kind: KindNotFound, Message: "opportunity not found"}
	ErrGroupNotFound       = &Error{Kind: KindNotFound, Message: "group not found"}
	ErrNotEnrolled         = &Error{Kind: KindNotFound, Message: "participant is not enrolled in the group"}
	ErrBidNotFound         = &Error{Kind: KindNotFound, Message: "bid not found"}
)

func newError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind carried by err. Errors that did not come from this
// package are reported as KindStoreUnavailable.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStoreUnavailable
}
