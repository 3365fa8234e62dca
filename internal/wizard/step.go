// Package wizard implements the four-step booking form as a pure reducer
// over an immutable accumulator, plus the submit-and-pay flow that talks to
// the booking API.
package wizard

import "fmt"

// Step is a position in the booking form.
type Step int

const (
	StepTimePreferences Step = iota + 1
	StepContact
	StepMedical
	StepPayment
)

// FirstStep and LastStep bound navigation.
const (
	FirstStep = StepTimePreferences
	LastStep  = StepPayment
)

func (s Step) String() string {
	switch s {
	case StepTimePreferences:
		return "time_preferences"
	case StepContact:
		return "contact"
	case StepMedical:
		return "medical"
	case StepPayment:
		return "payment"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Title is the heading shown above the step.
func (s Step) Title() string {
	switch s {
	case StepTimePreferences:
		return "Select Date & Time"
	case StepContact:
		return "Contact Details"
	case StepMedical:
		return "Medical Declaration"
	case StepPayment:
		return "Payment"
	default:
		return ""
	}
}

// Valid reports whether s is one of the four steps.
func (s Step) Valid() bool {
	return s >= FirstStep && s <= LastStep
}

func (s Step) next() Step {
	if s >= LastStep {
		return LastStep
	}
	return s + 1
}

func (s Step) prev() Step {
	if s <= FirstStep {
		return FirstStep
	}
	return s - 1
}
