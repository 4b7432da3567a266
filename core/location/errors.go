package location

import (
	"context"

	"github.com/pkg/errors"
)

type Kind int

const (
	PermissionDenied Kind = iota + 1
	PositionUnavailable
	Timeout
	Unsupported
)

// Platform error codes, as reported by browser-style geolocation APIs.
const (
	CodePermissionDenied    = 1
	CodePositionUnavailable = 2
	CodeTimeout             = 3
)

var (
	ErrPermissionDenied    = &Error{Kind: PermissionDenied}
	ErrPositionUnavailable = &Error{Kind: PositionUnavailable}
	ErrTimeout             = &Error{Kind: Timeout}
	ErrUnsupported         = &Error{Kind: Unsupported}
)

func (k Kind) String() string {
	switch k {
	case PermissionDenied:
		return "location permission denied"
	case PositionUnavailable:
		return "current position unavailable"
	case Timeout:
		return "timed out while acquiring position"
	case Unsupported:
		return "location is not supported on this device"
	default:
		return "unknown location error"
	}
}

// Error is the normalized location failure. All kinds can be retried by acquiring again.
type Error struct {
	Kind Kind
	Err  error
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so the Err* sentinels can be used with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// PlatformError is a coded failure reported by a Platform.
type PlatformError struct {
	Code    int
	Message string
}

func (e *PlatformError) Error() string {
	return e.Message
}

func normalize(err error) error {
	var lErr *Error
	if errors.As(err, &lErr) {
		return lErr
	}
	var pErr *PlatformError
	if errors.As(err, &pErr) {
		switch pErr.Code {
		case CodePermissionDenied:
			return newError(PermissionDenied, err)
		case CodeTimeout:
			return newError(Timeout, err)
		default:
			return newError(PositionUnavailable, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(Timeout, err)
	}
	return newError(PositionUnavailable, err)
}
