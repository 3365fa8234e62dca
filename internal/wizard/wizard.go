package wizard

import (
	"sync"

	"github.com/novellus/pilates-booking/internal/bookings"
	"github.com/novellus/pilates-booking/internal/schema"
)

// Wizard is a stateful wrapper around Reduce for a single customer session.
// It also remembers the booking created by SubmitAndPay so a retried payment
// does not insert a second row.
type Wizard struct {
	mu        sync.Mutex
	state     State
	booking   *bookings.Booking
	checkout  *Checkout
	confirmed *bookings.Booking
}

func New() *Wizard {
	return &Wizard{state: InitialState()}
}

// Dispatch applies an action and returns the resulting state.
func (w *Wizard) Dispatch(a Action) State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dispatchLocked(a)
}

func (w *Wizard) dispatchLocked(a Action) State {
	prev := w.state
	next := Reduce(prev, a)
	switch a.(type) {
	case Reset, *Reset:
		w.forgetBooking()
		w.confirmed = nil
	case Advance, *Advance:
		if len(next.Errors) == 0 && prev.Step < StepPayment {
			// Booking details changed; the next submit must create a new row.
			w.forgetBooking()
		}
	}
	w.state = next
	return next
}

// Advance submits data for the current step. It returns the step's
// *schema.ValidationError when the data is rejected.
func (w *Wizard) Advance(data any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	next := w.dispatchLocked(Advance{Data: data})
	if len(next.Errors) > 0 {
		return &schema.ValidationError{Errors: append([]schema.FieldError(nil), next.Errors...)}
	}
	return nil
}

// Retreat moves back one step, keeping entered data.
func (w *Wizard) Retreat() {
	w.Dispatch(Retreat{})
}

// Reset starts the form over.
func (w *Wizard) Reset() {
	w.Dispatch(Reset{})
}

// State returns a snapshot of the current state.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	return w.State().Step
}

// Submission returns the booking payload assembled from steps 1-3.
func (w *Wizard) Submission() (schema.BookingSubmission, error) {
	return w.State().Data.Submission()
}

// Confirmed returns the paid booking once Complete has succeeded.
func (w *Wizard) Confirmed() *bookings.Booking {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.confirmed
}

func (w *Wizard) forgetBooking() {
	w.booking = nil
	w.checkout = nil
}
