package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/novellus/pilates-booking/internal/bookings"
	"github.com/novellus/pilates-booking/internal/payments"
	"github.com/novellus/pilates-booking/internal/schema"
)

var (
	// ErrNotAtPaymentStep is returned when payment is attempted before step 4.
	ErrNotAtPaymentStep = errors.New("wizard: submit is only available on the payment step")

	// ErrNoCheckout is returned by Complete before SubmitAndPay has succeeded.
	ErrNoCheckout = errors.New("wizard: no payment in progress")
)

// BookingAPI is the server surface the wizard talks to.
type BookingAPI interface {
	CreateBooking(ctx context.Context, sub schema.BookingSubmission) (*bookings.Booking, error)
	CreatePaymentIntent(ctx context.Context, bookingID int64) (*payments.IntentResponse, error)
	ConfirmPayment(ctx context.Context, bookingID int64, paymentIntentID string) (*bookings.Booking, error)
}

// Checkout is what the payment widget needs to collect the card.
type Checkout struct {
	Booking         *bookings.Booking `json:"booking"`
	ClientSecret    string            `json:"clientSecret"`
	PaymentIntentID string            `json:"paymentIntentId"`
}

// SubmitAndPay creates the booking and its payment intent. It requires the
// payment step with terms and cancellation policy accepted. A booking
// created by an earlier attempt is reused.
func (w *Wizard) SubmitAndPay(ctx context.Context, api BookingAPI) (*Checkout, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state.Step != StepPayment {
		return nil, ErrNotAtPaymentStep
	}
	if err := schema.ValidatePaymentConsent(w.state.Data.Payment); err != nil {
		w.state.Errors = fieldErrors(err)
		return nil, err
	}
	sub, err := w.state.Data.Submission()
	if err != nil {
		return nil, err
	}

	if w.booking == nil {
		b, err := api.CreateBooking(ctx, sub)
		if err != nil {
			if ve, ok := schema.AsValidationError(err); ok {
				w.state.Errors = append([]schema.FieldError(nil), ve.Errors...)
			}
			return nil, fmt.Errorf("wizard: create booking: %w", err)
		}
		w.booking = b
	}

	intent, err := api.CreatePaymentIntent(ctx, w.booking.ID)
	if err != nil {
		if errors.Is(err, payments.ErrAlreadyFinalised) || errors.Is(err, payments.ErrBookingNotFound) {
			w.forgetBooking()
		}
		return nil, fmt.Errorf("wizard: create payment intent: %w", err)
	}

	w.state.Errors = nil
	w.checkout = &Checkout{
		Booking:         w.booking,
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.PaymentIntentID,
	}
	return w.checkout, nil
}

// Complete asks the server to verify the payment after the widget reports
// success. An empty intent id uses the one from SubmitAndPay. A failed
// payment finalises the booking, so the next SubmitAndPay starts a new one.
func (w *Wizard) Complete(ctx context.Context, api BookingAPI, paymentIntentID string) (*bookings.Booking, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.checkout == nil {
		return nil, ErrNoCheckout
	}
	if strings.TrimSpace(paymentIntentID) == "" {
		paymentIntentID = w.checkout.PaymentIntentID
	}

	b, err := api.ConfirmPayment(ctx, w.checkout.Booking.ID, paymentIntentID)
	if err != nil {
		var failed *payments.PaymentFailedError
		if errors.As(err, &failed) || errors.Is(err, payments.ErrAlreadyFinalised) {
			w.forgetBooking()
		}
		return nil, fmt.Errorf("wizard: confirm payment: %w", err)
	}
	w.confirmed = b
	w.forgetBooking()
	return b, nil
}
