// Package catalogerr defines the catalog manager's error-kind taxonomy
// so that transports can map a failure to a status code without
// string-matching an error message.
package catalogerr

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds a catalog operation may fail with.
type Kind string

const (
	KindNotFound                    Kind = "NOT_FOUND"
	KindAlreadyPresent              Kind = "ALREADY_PRESENT"
	KindInvalidArgument              Kind = "INVALID_ARGUMENT"
	KindInvalidSchema                Kind = "INVALID_SCHEMA"
	KindIllegalState                 Kind = "ILLEGAL_STATE"
	KindServiceUnavailable           Kind = "SERVICE_UNAVAILABLE"
	KindLeaderNotReadyToServe        Kind = "LEADER_NOT_READY_TO_SERVE"
	KindTimedOut                     Kind = "TIMED_OUT"
	KindCorruption                   Kind = "CORRUPTION"
	KindRemoteError                  Kind = "REMOTE_ERROR"
	KindTryAgain                     Kind = "TRY_AGAIN"
	KindConfigVersionMismatch        Kind = "CONFIG_VERSION_MISMATCH"
	KindNamespaceIsNotEmpty          Kind = "NAMESPACE_IS_NOT_EMPTY"
	KindCannotDeleteDefaultNamespace Kind = "CANNOT_DELETE_DEFAULT_NAMESPACE"
	KindTooManyTablets               Kind = "TOO_MANY_TABLETS"
	KindReplicationFactorTooHigh     Kind = "REPLICATION_FACTOR_TOO_HIGH"
	KindInvalidClusterConfig         Kind = "INVALID_CLUSTER_CONFIG"
)

// Error is a catalog error carrying one Kind plus a human message.
//
// Code, when set, overrides the wire-level response code a transport
// reports for this error (e.g. "NAMESPACE_NOT_FOUND" instead of the more
// generic NotFound kind); transports fall back to DefaultWireCode(Kind)
// when Code is empty.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Code    string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error with no wrapped cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error that wraps cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WithCode sets the wire-level code override on an *Error and returns it.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WireCode returns e.Code if set, else the default wire code for e.Kind.
func (e *Error) WireCode() string {
	if e.Code != "" {
		return e.Code
	}
	return DefaultWireCode(e.Kind)
}

// DefaultWireCode maps an internal Kind to its wire-response code, used
// when a handler has not set a more specific override.
func DefaultWireCode(k Kind) string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindAlreadyPresent:
		return "ALREADY_PRESENT"
	case KindInvalidArgument:
		return "INVALID_ARGUMENT"
	case KindInvalidSchema:
		return "INVALID_SCHEMA"
	case KindIllegalState:
		return "ILLEGAL_STATE"
	case KindServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	case KindLeaderNotReadyToServe:
		return "LEADER_NOT_READY_TO_SERVE"
	case KindTimedOut:
		return "TIMED_OUT"
	case KindCorruption:
		return "CORRUPTION"
	case KindRemoteError:
		return "REMOTE_ERROR"
	case KindTryAgain:
		return "CAN_RETRY_LOAD_BALANCE_CHECK"
	case KindConfigVersionMismatch:
		return "CONFIG_VERSION_MISMATCH"
	case KindNamespaceIsNotEmpty:
		return "NAMESPACE_IS_NOT_EMPTY"
	case KindCannotDeleteDefaultNamespace:
		return "CANNOT_DELETE_DEFAULT_NAMESPACE"
	case KindTooManyTablets:
		return "TOO_MANY_TABLETS"
	case KindReplicationFactorTooHigh:
		return "REPLICATION_FACTOR_TOO_HIGH"
	case KindInvalidClusterConfig:
		return "INVALID_CLUSTER_CONFIG"
	default:
		return string(k)
	}
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, and ok=false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
