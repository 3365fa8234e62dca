package wizard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novellus/pilates-booking/internal/schema"
)

func validTimePreferences() schema.TimePreferences {
	return schema.TimePreferences{
		TimePreferences: []string{"7.00 am", "6.00 pm"},
		ClassType:       schema.ClassReformer,
		Language:        schema.LanguageEnglish,
	}
}

func validContact() schema.ContactInfo {
	return schema.ContactInfo{
		FirstName:   "Jane",
		LastName:    "Citizen",
		PhoneNumber: "0412345678",
		Email:       "jane@example.com",
	}
}

func validMedical() schema.MedicalDeclaration {
	return schema.MedicalDeclaration{PainAreas: []schema.PainArea{schema.PainBack}}
}

func acceptedConsent() schema.PaymentConsent {
	return schema.PaymentConsent{TermsAccepted: true, CancellationPolicyAccepted: true}
}

func fieldNames(errs []schema.FieldError) []string {
	out := make([]string, len(errs))
	for i, fe := range errs {
		out[i] = fe.Field
	}
	return out
}

func TestStepString(t *testing.T) {
	assert.Equal(t, "time_preferences", StepTimePreferences.String())
	assert.Equal(t, "payment", StepPayment.String())
	assert.Equal(t, "step(9)", Step(9).String())
	assert.Equal(t, "Medical Declaration", StepMedical.Title())
	assert.False(t, Step(0).Valid())
}

func TestReduceAdvancesThroughAllSteps(t *testing.T) {
	s := InitialState()
	s = Reduce(s, Advance{Data: validTimePreferences()})
	require.Empty(t, s.Errors)
	assert.Equal(t, StepContact, s.Step)

	s = Reduce(s, Advance{Data: validContact()})
	require.Empty(t, s.Errors)
	assert.Equal(t, StepMedical, s.Step)

	s = Reduce(s, Advance{Data: &schema.MedicalDeclaration{}})
	require.Empty(t, s.Errors)
	assert.Equal(t, StepPayment, s.Step)

	s = Reduce(s, Advance{Data: acceptedConsent()})
	require.Empty(t, s.Errors)
	assert.Equal(t, StepPayment, s.Step, "advance is clamped at the final step")
	assert.True(t, s.Data.Payment.TermsAccepted)

	sub, err := s.Data.Submission()
	require.NoError(t, err)
	assert.Equal(t, "Jane", sub.FirstName)
	assert.Equal(t, []string{"7.00 am", "6.00 pm"}, sub.TimePreferences.TimePreferences)
}

func TestReduceRejectsInvalidStepData(t *testing.T) {
	s := InitialState()
	s = Reduce(s, Advance{Data: schema.TimePreferences{TimePreferences: []string{"a", "b", "c", "d"}}})
	assert.Equal(t, StepTimePreferences, s.Step)
	assert.Contains(t, fieldNames(s.Errors), "timePreferences")
	assert.Nil(t, s.Data.TimePreferences)

	s = Reduce(s, Advance{Data: validTimePreferences()})
	require.Equal(t, StepContact, s.Step)
	assert.Empty(t, s.Errors, "accepted data clears previous errors")

	c := validContact()
	c.FirstName = ""
	c.PhoneNumber = "12345"
	s = Reduce(s, Advance{Data: c})
	assert.Equal(t, StepContact, s.Step)
	assert.ElementsMatch(t, []string{"firstName", "phoneNumber"}, fieldNames(s.Errors))
}

func TestReduceRejectsPayloadForAnotherStep(t *testing.T) {
	s := Reduce(InitialState(), Advance{Data: validContact()})
	assert.Equal(t, StepTimePreferences, s.Step)
	require.Len(t, s.Errors, 1)
	assert.Equal(t, "step", s.Errors[0].Field)

	s = Reduce(InitialState(), Advance{Data: (*schema.TimePreferences)(nil)})
	assert.Equal(t, "step", s.Errors[0].Field)
}

func TestReducePaymentRequiresConsent(t *testing.T) {
	s := State{Step: StepPayment}
	s = Reduce(s, Advance{Data: schema.PaymentConsent{TermsAccepted: true}})
	assert.Equal(t, []string{"cancellationPolicyAccepted"}, fieldNames(s.Errors))
	assert.False(t, s.Data.Payment.TermsAccepted)
}

func TestReduceRetreatKeepsData(t *testing.T) {
	s := Reduce(InitialState(), Advance{Data: validTimePreferences()})
	s = Reduce(s, Advance{Data: validContact()})
	require.Equal(t, StepMedical, s.Step)

	s = Reduce(s, Retreat{})
	assert.Equal(t, StepContact, s.Step)
	require.NotNil(t, s.Data.Contact)
	assert.Equal(t, "Jane", s.Data.Contact.FirstName)

	s = Reduce(s, Retreat{})
	s = Reduce(s, Retreat{})
	assert.Equal(t, StepTimePreferences, s.Step, "retreat is a no-op at step 1")
	assert.NotNil(t, s.Data.Contact)
}

func TestReduceReset(t *testing.T) {
	s := Reduce(InitialState(), Advance{Data: validTimePreferences()})
	s = Reduce(s, Reset{})
	assert.Equal(t, InitialState(), s)
}

func TestReduceDoesNotMutateInputs(t *testing.T) {
	tp := validTimePreferences()
	before := InitialState()
	after := Reduce(before, Advance{Data: tp})

	assert.Nil(t, before.Data.TimePreferences)
	require.NotNil(t, after.Data.TimePreferences)

	tp.TimePreferences[0] = "1.00 pm"
	assert.Equal(t, "7.00 am", after.Data.TimePreferences.TimePreferences[0])

	weeks := 20
	med := schema.MedicalDeclaration{IsPregnant: true, PregnancyWeeks: &weeks}
	s := Reduce(State{Step: StepMedical, Data: after.Data}, Advance{Data: &med})
	require.Empty(t, s.Errors)
	weeks = 30
	assert.Equal(t, 20, *s.Data.Medical.PregnancyWeeks)
	assert.True(t, s.Data.Medical.HasMedicalConditions)
}

func TestReduceNormalizesInvalidStep(t *testing.T) {
	s := Reduce(State{Step: 0}, Advance{Data: validTimePreferences()})
	assert.Equal(t, StepContact, s.Step)
}

func TestSubmissionRequiresSteps(t *testing.T) {
	s := Reduce(InitialState(), Advance{Data: validTimePreferences()})
	_, err := s.Data.Submission()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIncomplete))
	assert.Contains(t, err.Error(), "contact, medical")
}
