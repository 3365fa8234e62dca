package bookings

import "errors"

var (
	// ErrNotFound is returned when no booking has the requested id.
	ErrNotFound = errors.New("booking not found")

	// ErrPersistence wraps store failures (unreachable database, constraint violations).
	ErrPersistence = errors.New("booking store unavailable")

	// ErrInvalidTransition is returned for reverse payment status changes.
	ErrInvalidTransition = errors.New("invalid payment status transition")
)
