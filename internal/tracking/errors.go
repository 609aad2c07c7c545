package tracking

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyTracking = errors.New("tracking already in progress")
	ErrNotTracking     = errors.New("tracking not started")
	ErrBusy            = errors.New("a save decision is pending")

	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrTimeout             = errors.New("position request timed out")
)

// Geolocation platform codes.
const (
	codePermissionDenied    = 1
	codePositionUnavailable = 2
	codeTimeout             = 3
)

// FromCode translates a numeric platform geolocation code.
func FromCode(code int) error {
	switch code {
	case codePermissionDenied:
		return ErrPermissionDenied
	case codePositionUnavailable:
		return ErrPositionUnavailable
	case codeTimeout:
		return ErrTimeout
	default:
		return fmt.Errorf("%w: platform code %d", ErrPositionUnavailable, code)
	}
}

// ParsePositionError translates a textual error kind such as
// "permission-denied".
func ParsePositionError(kind string) error {
	switch kind {
	case "permission-denied":
		return ErrPermissionDenied
	case "position-unavailable":
		return ErrPositionUnavailable
	case "timeout":
		return ErrTimeout
	default:
		return fmt.Errorf("%w: %s", ErrPositionUnavailable, kind)
	}
}

// IsFatal reports whether a position error ends the current recording.
func IsFatal(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}
