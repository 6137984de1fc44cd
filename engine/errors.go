package engine

import (
	"errors"
	"fmt"
)

// RejectionKind classifies an expected, user-facing refusal.
type RejectionKind string

const (
	RejectQuotaExceeded     RejectionKind = "quota_exceeded"
	RejectAlreadyTerminal   RejectionKind = "already_terminal"
	RejectInvalidTransition RejectionKind = "invalid_transition"
	RejectUnauthorized      RejectionKind = "unauthorized"
	RejectNotFound          RejectionKind = "not_found"
	RejectInvalidInput      RejectionKind = "invalid_input"
	RejectConflict          RejectionKind = "conflict"
)

// Rejection is returned when an operation is refused for a domain reason.
// Callers should surface Reason to the user and offer corrective action.
type Rejection struct {
	Kind   RejectionKind
	Reason string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Kind, r.Reason)
}

func Reject(kind RejectionKind, format string, args ...any) *Rejection {
	return &Rejection{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// AsRejection reports whether err carries a Rejection.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// StoreError wraps a persistence failure. These are retryable from the caller's
// point of view and never mean the request itself was invalid.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
