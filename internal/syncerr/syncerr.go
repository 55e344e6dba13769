// Package syncerr defines the closed error taxonomy shared by the sync engine.
// Callers branch on Kind via errors.As instead of matching message substrings.
package syncerr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindIO covers local filesystem failures (open/read/write/copy).
	KindIO Kind = iota
	// KindTransport covers connect/auth/protocol failures from the transport layer.
	KindTransport
	// KindConsistency covers remote/local state divergence and malformed
	// persisted documents.
	KindConsistency
	// KindCancelled marks user-requested cancellation. Never retried.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindTransport:
		return "transport"
	case KindConsistency:
		return "consistency"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error carries the kind, the relative path it concerns (if any) and the cause.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

func Newf(kind Kind, path string, format string, args ...any) *Error {
	return &Error{Kind: kind, Path: path, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind of err, or (0, false) if err is not a taxonomy error.
func KindOf(err error) (Kind, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}

// IsCancelled reports whether err is a user-requested cancellation.
func IsCancelled(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindCancelled
}
