package db

import (
	"errors"
	"fmt"
)

// Kind classifies a database error.
type Kind int

const (
	// KindUnknown is the zero value and never produced by this package.
	KindUnknown Kind = iota

	// KindInit covers driver registration failures during startup.
	KindInit

	// KindConnection covers open or ping failures for the primary session
	// and for pool entries. Fatal to the constructing path; never retried.
	KindConnection

	// KindConfiguration covers requests the configured backend cannot
	// serve, such as asking for a connection pool on an in-memory store.
	KindConfiguration

	// KindQuery covers statement preparation and execution failures.
	KindQuery
)

func (k Kind) String() string {
	switch k {
	case KindInit:
		return "init"
	case KindConnection:
		return "connection"
	case KindConfiguration:
		return "configuration"
	case KindQuery:
		return "query"
	default:
		return "unknown"
	}
}

// Error is the error type returned by this package. Kind tells the caller
// which failure class it belongs to, Op names the operation that failed,
// and Err carries the underlying cause (unwrappable with errors.Is/As).
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("db: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("db: %s", e.Op)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Kind, so callers can compare against
// lightweight sentinels like &Error{Kind: KindQuery}.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func kindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsInitError reports whether err is a driver registration failure.
func IsInitError(err error) bool { return kindOf(err) == KindInit }

// IsConnectionError reports whether err is a session open or ping failure.
func IsConnectionError(err error) bool { return kindOf(err) == KindConnection }

// IsConfigurationError reports whether err is a backend capability mismatch.
func IsConfigurationError(err error) bool { return kindOf(err) == KindConfiguration }

// IsQueryError reports whether err is a statement prepare or execution failure.
func IsQueryError(err error) bool { return kindOf(err) == KindQuery }
