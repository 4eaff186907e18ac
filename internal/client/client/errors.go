package client

import (
	"errors"
	"fmt"
)

// ErrorKind classifies transport failures.
type ErrorKind string

const (
	// KindUnauthorized: the session is invalid; retrying cannot help.
	KindUnauthorized ErrorKind = "unauthorized"
	// KindNetwork: connectivity, timeout or non-2xx status; retried with backoff.
	KindNetwork ErrorKind = "network"
	// KindParse: the server answered with a payload we cannot decode.
	KindParse ErrorKind = "parse"
	// KindUnknown: anything else; retried like KindNetwork.
	KindUnknown ErrorKind = "unknown"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNetwork      = errors.New("network error")
	ErrParse        = errors.New("malformed server response")
	ErrUnknown      = errors.New("unknown sync error")
)

var kindSentinels = map[ErrorKind]error{
	KindUnauthorized: ErrUnauthorized,
	KindNetwork:      ErrNetwork,
	KindParse:        ErrParse,
	KindUnknown:      ErrUnknown,
}

// SyncError is the tagged failure returned by every Client call.
type SyncError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *SyncError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNetwork) and friends match on the kind.
func (e *SyncError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func newSyncError(op string, kind ErrorKind, err error) *SyncError {
	return &SyncError{Op: op, Kind: kind, Err: err}
}

// KindOf extracts the kind of err. Errors that are not *SyncError are unknown.
func KindOf(err error) ErrorKind {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether the backoff policy should retry err.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindUnknown:
		return true
	default:
		return false
	}
}
