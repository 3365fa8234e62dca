package wizard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/novellus/pilates-booking/internal/schema"
)

// ErrIncomplete is returned when a submission is requested before steps 1-3
// have been accepted.
var ErrIncomplete = errors.New("wizard: booking details incomplete")

// Accumulator holds the data accepted so far, keyed by step. It is a value
// type; every With method returns a new accumulator and never touches the
// receiver or the caller's data.
type Accumulator struct {
	TimePreferences *schema.TimePreferences    `json:"timePreferences,omitempty"`
	Contact         *schema.ContactInfo        `json:"contact,omitempty"`
	Medical         *schema.MedicalDeclaration `json:"medical,omitempty"`
	Payment         schema.PaymentConsent      `json:"payment"`
}

func (a Accumulator) WithTimePreferences(t schema.TimePreferences) Accumulator {
	t.TimePreferences = append([]string(nil), t.TimePreferences...)
	a.TimePreferences = &t
	return a
}

func (a Accumulator) WithContact(c schema.ContactInfo) Accumulator {
	a.Contact = &c
	return a
}

func (a Accumulator) WithMedical(m schema.MedicalDeclaration) Accumulator {
	m.PainAreas = append([]schema.PainArea(nil), m.PainAreas...)
	if m.PregnancyWeeks != nil {
		w := *m.PregnancyWeeks
		m.PregnancyWeeks = &w
	}
	a.Medical = &m
	return a
}

func (a Accumulator) WithPayment(p schema.PaymentConsent) Accumulator {
	a.Payment = p
	return a
}

// Missing lists the steps whose data has not been accepted yet.
func (a Accumulator) Missing() []Step {
	var out []Step
	if a.TimePreferences == nil {
		out = append(out, StepTimePreferences)
	}
	if a.Contact == nil {
		out = append(out, StepContact)
	}
	if a.Medical == nil {
		out = append(out, StepMedical)
	}
	return out
}

// Submission flattens steps 1-3 into the payload posted to the booking API.
func (a Accumulator) Submission() (schema.BookingSubmission, error) {
	if missing := a.Missing(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, s := range missing {
			names[i] = s.String()
		}
		return schema.BookingSubmission{}, fmt.Errorf("%w: missing %s", ErrIncomplete, strings.Join(names, ", "))
	}
	sub := schema.BookingSubmission{
		ContactInfo:        *a.Contact,
		TimePreferences:    *a.TimePreferences,
		MedicalDeclaration: *a.Medical,
	}
	sub.TimePreferences.TimePreferences = append([]string(nil), a.TimePreferences.TimePreferences...)
	sub.PainAreas = append([]schema.PainArea(nil), a.Medical.PainAreas...)
	return sub, nil
}

// State is the full wizard state. Errors holds the field errors from the
// last rejected Advance and is cleared by any accepted action.
type State struct {
	Step   Step                `json:"step"`
	Data   Accumulator         `json:"data"`
	Errors []schema.FieldError `json:"errors,omitempty"`
}

// InitialState is the state of a fresh form.
func InitialState() State {
	return State{Step: FirstStep}
}

// Action is one user interaction with the form.
type Action interface {
	isAction()
}

// Advance submits the current step's data. Data must be the step's schema
// type (value or pointer).
type Advance struct {
	Data any
}

// Retreat moves back one step.
type Retreat struct{}

// Reset discards all data and returns to step 1.
type Reset struct{}

func (Advance) isAction() {}
func (Retreat) isAction() {}
func (Reset) isAction()   {}

// Reduce returns the state that follows s after action a. It has no side
// effects.
func Reduce(s State, a Action) State {
	if !s.Step.Valid() {
		s.Step = FirstStep
	}
	switch act := a.(type) {
	case Advance:
		return advance(s, act.Data)
	case *Advance:
		if act == nil {
			return s
		}
		return advance(s, act.Data)
	case Retreat, *Retreat:
		return State{Step: s.Step.prev(), Data: s.Data}
	case Reset, *Reset:
		return InitialState()
	default:
		return s
	}
}

func advance(s State, data any) State {
	var (
		acc Accumulator
		err error
	)
	switch s.Step {
	case StepTimePreferences:
		acc, err = acceptTimePreferences(s.Data, data)
	case StepContact:
		acc, err = acceptContact(s.Data, data)
	case StepMedical:
		acc, err = acceptMedical(s.Data, data)
	case StepPayment:
		acc, err = acceptPayment(s.Data, data)
	}
	if err != nil {
		return State{Step: s.Step, Data: s.Data, Errors: fieldErrors(err)}
	}
	return State{Step: s.Step.next(), Data: acc}
}

func acceptTimePreferences(acc Accumulator, data any) (Accumulator, error) {
	var t schema.TimePreferences
	switch v := data.(type) {
	case schema.TimePreferences:
		t = v
	case *schema.TimePreferences:
		if v == nil {
			return acc, wrongPayload(StepTimePreferences)
		}
		t = *v
	default:
		return acc, wrongPayload(StepTimePreferences)
	}
	t.TimePreferences = append([]string(nil), t.TimePreferences...)
	t.Normalize()
	if err := schema.ValidateTimePreferences(t); err != nil {
		return acc, err
	}
	return acc.WithTimePreferences(t), nil
}

func acceptContact(acc Accumulator, data any) (Accumulator, error) {
	var c schema.ContactInfo
	switch v := data.(type) {
	case schema.ContactInfo:
		c = v
	case *schema.ContactInfo:
		if v == nil {
			return acc, wrongPayload(StepContact)
		}
		c = *v
	default:
		return acc, wrongPayload(StepContact)
	}
	c.Normalize()
	if err := schema.ValidateContact(c); err != nil {
		return acc, err
	}
	return acc.WithContact(c), nil
}

func acceptMedical(acc Accumulator, data any) (Accumulator, error) {
	var m schema.MedicalDeclaration
	switch v := data.(type) {
	case schema.MedicalDeclaration:
		m = v
	case *schema.MedicalDeclaration:
		if v == nil {
			return acc, wrongPayload(StepMedical)
		}
		m = *v
	default:
		return acc, wrongPayload(StepMedical)
	}
	if m.PregnancyWeeks != nil {
		w := *m.PregnancyWeeks
		m.PregnancyWeeks = &w
	}
	m.Normalize()
	if err := schema.ValidateMedical(m); err != nil {
		return acc, err
	}
	return acc.WithMedical(m), nil
}

func acceptPayment(acc Accumulator, data any) (Accumulator, error) {
	var p schema.PaymentConsent
	switch v := data.(type) {
	case schema.PaymentConsent:
		p = v
	case *schema.PaymentConsent:
		if v == nil {
			return acc, wrongPayload(StepPayment)
		}
		p = *v
	default:
		return acc, wrongPayload(StepPayment)
	}
	if err := schema.ValidatePaymentConsent(p); err != nil {
		return acc, err
	}
	return acc.WithPayment(p), nil
}

func wrongPayload(step Step) error {
	return &schema.ValidationError{Errors: []schema.FieldError{{
		Field:   "step",
		Message: fmt.Sprintf("unexpected data for the %s step", step),
	}}}
}

func fieldErrors(err error) []schema.FieldError {
	if ve, ok := schema.AsValidationError(err); ok {
		return append([]schema.FieldError(nil), ve.Errors...)
	}
	return []schema.FieldError{{Field: "step", Message: err.Error()}}
}
