// Package apperr classifies the failures that can occur while serving a
// submission or a search so the HTTP layer can map each class to a fixed
// user-facing message.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind is the classification of an error.
type Kind int

const (
	// KindUnknown is any error that was never classified
	KindUnknown Kind = iota
	// KindUpstreamAuth is an authorization or token failure
	KindUpstreamAuth
	// KindWriteRejected is a mutation refused by the knowledge base
	KindWriteRejected
	// KindUpstreamTimeout is an outbound call that ran out of time
	KindUpstreamTimeout
	// KindMalformedSubmission is a missing or invalid field, or an unknown predicate code
	KindMalformedSubmission
	// KindReconciliationMiss is the expected miss of the claim lookup after a write
	KindReconciliationMiss
	// KindLedgerIO is a failure reading or writing a vote ledger
	KindLedgerIO
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindUpstreamAuth:
		return "upstream_auth"
	case KindWriteRejected:
		return "write_rejected"
	case KindUpstreamTimeout:
		return "upstream_timeout"
	case KindMalformedSubmission:
		return "malformed_submission"
	case KindReconciliationMiss:
		return "reconciliation_miss"
	case KindLedgerIO:
		return "ledger_io"
	default:
		return "unknown"
	}
}

// Standard errors for conditions without an underlying cause
var (
	ErrNoPendingLogin = errors.New("no pending request token in session")
	ErrNotLoggedIn    = errors.New("no access token in session")
	ErrMissingField   = errors.New("missing required field")
	ErrUnknownCode    = errors.New("unrecognized predicate code")
	ErrNoClaimHandle  = errors.New("claim handle not found")
)

// Error is a classified error.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error.
func New(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// UpstreamAuth wraps an authorization failure.
func UpstreamAuth(op string, err error) error {
	if IsTimeout(err) {
		return New(KindUpstreamTimeout, op, "", err)
	}
	return New(KindUpstreamAuth, op, "", err)
}

// WriteRejected wraps a refused mutation together with the upstream message.
func WriteRejected(op, upstreamMessage string, err error) error {
	if IsTimeout(err) {
		return New(KindUpstreamTimeout, op, upstreamMessage, err)
	}
	return New(KindWriteRejected, op, upstreamMessage, err)
}

// Malformed reports an invalid submission.
func Malformed(op, message string) error {
	return New(KindMalformedSubmission, op, message, ErrMissingField)
}

// ReconciliationMiss reports that a just-created claim could not be found.
func ReconciliationMiss(op, message string) error {
	return New(KindReconciliationMiss, op, message, ErrNoClaimHandle)
}

// LedgerIO wraps a ledger read or write failure.
func LedgerIO(op string, err error) error {
	return New(KindLedgerIO, op, "", err)
}

// KindOf returns the kind of the first classified error in err's chain.
// Unclassified timeouts are reported as KindUpstreamTimeout.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if IsTimeout(err) {
		return KindUpstreamTimeout
	}
	return KindUnknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsTimeout reports whether err is a context deadline or a network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
