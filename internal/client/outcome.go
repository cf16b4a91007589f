package client

import (
	"errors"
	"fmt"

	"connectrpc.com/connect"
)

// Outcome classifies the result of a server call.
type Outcome int

const (
	OK Outcome = iota
	// LimitReached is a quota signal. Callers route it to an upgrade flow,
	// not a generic error message.
	LimitReached
	Unauthorized
	NotFound
	Invalid
	Conflict
	Failed
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case LimitReached:
		return "limit_reached"
	case Unauthorized:
		return "unauthorized"
	case NotFound:
		return "not_found"
	case Invalid:
		return "invalid"
	case Conflict:
		return "conflict"
	default:
		return "failed"
	}
}

// Result is returned by every mutation.
type Result struct {
	Outcome Outcome

	// ID is the server-assigned id of a created entity, if any.
	ID string

	// LastUpdated is the session cursor after the mutation.
	LastUpdated string

	// Err describes the failure. Nil when Outcome is OK.
	Err error
}

// OK reports whether the server accepted the mutation.
func (r Result) OK() bool { return r.Outcome == OK }

// LimitReached reports whether the server rejected the call on a quota.
func (r Result) LimitReached() bool { return r.Outcome == LimitReached }

// Error is returned by reads.
type Error struct {
	Outcome Outcome
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Outcome, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Classify maps an error returned by the connect client to an Outcome.
func Classify(err error) Outcome {
	if err == nil {
		return OK
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Outcome
	}
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		return Failed
	}
	switch connectErr.Code() {
	case connect.CodeUnauthenticated, connect.CodePermissionDenied:
		return Unauthorized
	case connect.CodeNotFound:
		return NotFound
	case connect.CodeResourceExhausted:
		return LimitReached
	case connect.CodeInvalidArgument:
		return Invalid
	case connect.CodeFailedPrecondition, connect.CodeAborted:
		return Conflict
	default:
		return Failed
	}
}

// Failure builds a non-OK Result from err.
func Failure(err error) Result {
	return Result{Outcome: Classify(err), Err: err}
}

// Rejected builds an Invalid Result for input refused before any network call.
func Rejected(err error) Result {
	return Result{Outcome: Invalid, Err: err}
}

func readError(err error) error {
	return &Error{Outcome: Classify(err), Err: err}
}
