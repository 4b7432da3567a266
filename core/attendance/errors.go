package attendance

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrLocationRequired means no fresh position is held by the active session.
	ErrLocationRequired = errors.New("your current location is required to scan a code")
	ErrEmptySelection   = errors.New("select at least one child")
	ErrInvalidState     = errors.New("operation not allowed in the current state")
	ErrUnknownChild     = errors.New("child is not eligible for this action")

	genericSubmissionMsg = "attendance could not be recorded, please try again"
)

// GeofenceError refuses a scan started too far from school.
type GeofenceError struct {
	Distance float64 // meters
	Radius   float64 // meters
}

func (e *GeofenceError) Error() string {
	return fmt.Sprintf("you are %.0fm away from school; you must be within %.0fm to scan", e.Distance, e.Radius)
}

// CameraError means the capture could not be started. It is never retried automatically.
type CameraError struct {
	Err error
}

func (e *CameraError) Error() string {
	if e.Err == nil {
		return "camera unavailable"
	}
	return "camera unavailable: " + e.Err.Error()
}

func (e *CameraError) Unwrap() error { return e.Err }

// InvalidCodeError carries the reason the server rejected a scanned code.
type InvalidCodeError struct {
	Reason string
}

func (e *InvalidCodeError) Error() string {
	if e.Reason == "" {
		return "invalid QR code"
	}
	return e.Reason
}

type NoEligibleChildrenError struct {
	Action ScanAction
}

func (e *NoEligibleChildrenError) Error() string {
	if e.Action == CheckOut {
		return "none of your children are checked in"
	}
	return "all your children are already checked in"
}

// RequestError wraps a failed round-trip (network or server) other than a submission.
type RequestError struct {
	Op  string
	Err error
}

func (e *RequestError) Error() string {
	return e.Op + " failed: " + e.Err.Error()
}

func (e *RequestError) Unwrap() error { return e.Err }

// SubmissionError is a failed check-in/out batch. Message is the server's, verbatim, when it sent one.
type SubmissionError struct {
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return genericSubmissionMsg
}

func (e *SubmissionError) Unwrap() error { return e.Err }
