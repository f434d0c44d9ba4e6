package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Kind is the closed set of failure kinds observed by the exporter.
// Its string form is the error_type label of the poll error counter.
type Kind string

const (
	KindAuthMissing  Kind = "auth_missing"
	KindAuthRevoked  Kind = "auth_revoked"
	KindAuthRejected Kind = "auth_rejected"

	KindNetwork     Kind = "network"
	KindTimeout     Kind = "timeout"
	KindServerError Kind = "server_error"
	KindRateLimited Kind = "rate_limited"

	KindMalformedPayload   Kind = "malformed_payload"
	KindUnsupportedPayload Kind = "unsupported_payload"

	KindConfig     Kind = "config"
	KindUnexpected Kind = "unexpected"
)

// Kinds lists every Kind in a fixed order.
var Kinds = []Kind{
	KindAuthMissing, KindAuthRevoked, KindAuthRejected,
	KindNetwork, KindTimeout, KindServerError, KindRateLimited,
	KindMalformedPayload, KindUnsupportedPayload,
	KindConfig, KindUnexpected,
}

// Class groups kinds by how the poll loop reacts to them.
type Class int

const (
	// ClassTransient failures are retried through backoff.
	ClassTransient Class = iota
	// ClassAuth failures need a new credential; polling continues.
	ClassAuth
	// ClassPayload failures are logged and treated as transient for cadence.
	ClassPayload
	// ClassConfig failures are fatal at startup.
	ClassConfig
)

func (c Class) String() string {
	switch c {
	case ClassAuth:
		return "auth"
	case ClassPayload:
		return "payload"
	case ClassConfig:
		return "config"
	default:
		return "transient"
	}
}

// Class returns the class of k. Unexpected errors are treated as transient.
func (k Kind) Class() Class {
	switch k {
	case KindAuthMissing, KindAuthRevoked, KindAuthRejected:
		return ClassAuth
	case KindMalformedPayload, KindUnsupportedPayload:
		return ClassPayload
	case KindConfig:
		return ClassConfig
	default:
		return ClassTransient
	}
}

// Error is a classified failure.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "fleet.vehicle_data".
	Op string
	// RetryAfter is the server supplied hint for rate limited requests.
	RetryAfter time.Duration
	Err        error
}

// NewError wraps err with a kind and operation.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrCredentialRevoked)
// holds for every revoked failure regardless of its operation or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

var (
	// ErrCredentialMissing means no credential has been stored yet.
	ErrCredentialMissing = &Error{Kind: KindAuthMissing}
	// ErrCredentialRevoked means the issuer rejected the refresh token.
	ErrCredentialRevoked = &Error{Kind: KindAuthRevoked}
)

// KindOf classifies err. Nil yields the empty Kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	// *url.Error and *net.OpError both satisfy net.Error.
	var nerr net.Error
	if errors.As(err, &nerr) {
		if nerr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}

	return KindUnexpected
}

// ClassOf is KindOf(err).Class().
func ClassOf(err error) Class {
	return KindOf(err).Class()
}

// Classify returns err as a *Error, wrapping it with its derived kind when needed.
func Classify(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return NewError(KindOf(err), op, err)
}

// RetryAfter extracts the rate limit hint from err, if any.
func RetryAfter(err error) time.Duration {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.RetryAfter
	}
	return 0
}

// ParseRetryAfter reads a Retry-After header given in seconds. HTTP dates are not
// issued by the Fleet API and yield zero.
func ParseRetryAfter(v string) time.Duration {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
