package payments

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrBookingNotFound is returned when the booking id is unknown.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrAlreadyFinalised is returned for bookings whose payment is completed or failed.
	ErrAlreadyFinalised = errors.New("booking payment already finalised")

	// ErrIntentMismatch is returned when an intent belongs to a different booking.
	ErrIntentMismatch = errors.New("payment intent does not belong to booking")

	// ErrIntentNotFound is returned when the provider has no such intent.
	ErrIntentNotFound = errors.New("payment intent not found")

	// ErrVelocityExceeded is returned when a booking requested too many intents.
	ErrVelocityExceeded = errors.New("too many payment attempts")
)

// PaymentFailedError reports a provider status outside the success set.
type PaymentFailedError struct {
	Status string
}

func (e *PaymentFailedError) Error() string {
	return "Payment not successful. Status: " + e.Status
}

// VelocityError reports a throttled intent request. It matches
// ErrVelocityExceeded.
type VelocityError struct {
	BookingID int64
	Reason    string
	ResetAt   time.Time
}

func (e *VelocityError) Error() string {
	msg := fmt.Sprintf("payments: booking %d: %s", e.BookingID, ErrVelocityExceeded)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *VelocityError) Unwrap() error {
	return ErrVelocityExceeded
}

// RetryAfter is how long until the window resets, never below one second.
func (e *VelocityError) RetryAfter(now time.Time) time.Duration {
	if d := e.ResetAt.Sub(now); d > time.Second {
		return d
	}
	return time.Second
}

// ProviderError wraps a failed call to the payment provider.
type ProviderError struct {
	Op  string
	Err error
}

func newProviderError(op string, err error) *ProviderError {
	return &ProviderError{Op: op, Err: err}
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payments: stripe %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
