package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies failures by how they must be handled, not by where they happened.
type Kind string

const (
	KindUnconfigured     Kind = "unconfigured"
	KindProviderFailure  Kind = "provider_failure"
	KindAccessDenied     Kind = "access_denied"
	KindRateLimited      Kind = "rate_limited"
	KindInvalidInput     Kind = "invalid_input"
	KindStoreUnavailable Kind = "store_unavailable"
	KindNotFound         Kind = "not_found"
	KindInternal         Kind = "internal"
)

var (
	// ErrUnconfigured marks a provider or backend without credentials.
	ErrUnconfigured = New(KindUnconfigured, "", errors.New("not configured"))
	// ErrNotFound is returned by lookups that found nothing.
	ErrNotFound = New(KindNotFound, "", errors.New("not found"))
)

type Error struct {
	Kind Kind
	Op   string
	Err  error

	// RetryAfter is set on rate-limit errors when the next allowed time is known.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.Kind)
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind so errors.Is(err, apperr.ErrUnconfigured) works
// for wrapped errors produced by different operations.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Unconfigured builds an Unconfigured error for the named provider.
func Unconfigured(op string) *Error {
	return New(KindUnconfigured, op, errors.New("credentials not configured"))
}

// StoreUnavailable wraps a persistence failure.
func StoreUnavailable(op string, err error) *Error {
	return New(KindStoreUnavailable, op, err)
}

// InvalidInput builds an error carrying usage guidance in its message.
func InvalidInput(op, usage string) *Error {
	return New(KindInvalidInput, op, errors.New(usage))
}

// RateLimited builds a rate-limit error with the retry hint.
func RateLimited(op string, retryAfter time.Duration) *Error {
	e := New(KindRateLimited, op, errors.New("rate limit exceeded"))
	e.RetryAfter = retryAfter
	return e
}

// AccessDenied wraps a platform permission error.
func AccessDenied(op string, err error) *Error {
	return New(KindAccessDenied, op, err)
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
