package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validContact() ContactInfo {
	return ContactInfo{
		FirstName:   "Ana",
		LastName:    "Lopez",
		PhoneNumber: "0412 345 678",
		Email:       "ana@example.com",
	}
}

func validTimes() TimePreferences {
	return TimePreferences{
		TimePreferences: []string{"9.00 am", "6.00 pm"},
		ClassType:       ClassMat,
		Language:        LanguageEnglish,
	}
}

func TestValidateContact(t *testing.T) {
	require.NoError(t, ValidateContact(validContact()))

	bad := ContactInfo{FirstName: "   ", LastName: "L", PhoneNumber: "12345", Email: "nope"}
	bad.Normalize()
	err := ValidateContact(bad)
	ve, ok := AsValidationError(err)
	require.True(t, ok, "expected ValidationError, got %v", err)
	assert.ElementsMatch(t, []string{"firstName", "phoneNumber", "email"}, ve.Fields())
	for _, fe := range ve.Errors {
		if fe.Field == "phoneNumber" {
			assert.Equal(t, "Please enter a valid Australian phone number", fe.Message)
		}
	}
}

func TestValidateContactEmergencyPhoneOptional(t *testing.T) {
	c := validContact()
	c.EmergencyContactName = "Luis"
	require.NoError(t, ValidateContact(c))

	c.EmergencyContactPhone = "555"
	ve, ok := AsValidationError(ValidateContact(c))
	require.True(t, ok)
	assert.Equal(t, []string{"emergencyContactPhone"}, ve.Fields())
}

func TestValidateTimePreferences(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TimePreferences)
		field  string
	}{
		{"empty list", func(tp *TimePreferences) { tp.TimePreferences = []string{} }, "timePreferences"},
		{"nil list", func(tp *TimePreferences) { tp.TimePreferences = nil }, "timePreferences"},
		{"too many", func(tp *TimePreferences) {
			tp.TimePreferences = []string{"7.00 am", "8.00 am", "9.00 am", "10.00 am"}
		}, "timePreferences"},
		{"duplicate", func(tp *TimePreferences) { tp.TimePreferences = []string{"7.00 am", "7.00 am"} }, "timePreferences"},
		{"unknown slot", func(tp *TimePreferences) { tp.TimePreferences = []string{"4.00 am"} }, "timePreferences"},
		{"class type", func(tp *TimePreferences) { tp.ClassType = "yoga" }, "classType"},
		{"language", func(tp *TimePreferences) { tp.Language = "french" }, "language"},
		{"bad date", func(tp *TimePreferences) { tp.SelectedDate = "next friday" }, "selectedDate"},
	}

	require.NoError(t, ValidateTimePreferences(validTimes()))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp := validTimes()
			tt.mutate(&tp)
			ve, ok := AsValidationError(ValidateTimePreferences(tp))
			require.True(t, ok)
			assert.Equal(t, []string{tt.field}, ve.Fields())
		})
	}
}

func TestTimePreferencesDefaults(t *testing.T) {
	tp := TimePreferences{TimePreferences: []string{" 7.00 pm "}, SelectedDate: "2025-06-13"}
	tp.Normalize()
	assert.Equal(t, ClassMat, tp.ClassType)
	assert.Equal(t, LanguageEnglish, tp.Language)
	assert.Equal(t, "7.00 pm", tp.TimePreferences[0])
	require.NoError(t, ValidateTimePreferences(tp))
}

func TestValidateMedical(t *testing.T) {
	require.NoError(t, ValidateMedical(MedicalDeclaration{}))

	weeks := 50
	m := MedicalDeclaration{
		PainAreas:         []PainArea{PainNeck, "elbow"},
		IsPregnant:        true,
		PregnancyWeeks:    &weeks,
		MedicalConditions: strings.Repeat("x", 2001),
	}
	ve, ok := AsValidationError(ValidateMedical(m))
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"painAreas", "pregnancyWeeks", "medicalConditions"}, ve.Fields())
}

func TestMedicalNormalizeDerivesClearance(t *testing.T) {
	weeks := 12
	m := MedicalDeclaration{PregnancyWeeks: &weeks, PainAreas: []PainArea{PainBack}}
	m.Normalize()
	assert.Nil(t, m.PregnancyWeeks, "weeks are dropped when not pregnant")
	assert.False(t, m.HasMedicalConditions, "pain areas alone do not need clearance")

	m.Dizziness = true
	m.Normalize()
	assert.True(t, m.HasMedicalConditions)
}

func TestNeedsMedicalClearanceEachFlag(t *testing.T) {
	flags := []func(*MedicalDeclaration){
		func(m *MedicalDeclaration) { m.IsPregnant = true },
		func(m *MedicalDeclaration) { m.HeartCondition = true },
		func(m *MedicalDeclaration) { m.ChestPain = true },
		func(m *MedicalDeclaration) { m.Dizziness = true },
		func(m *MedicalDeclaration) { m.AsthmaAttack = true },
		func(m *MedicalDeclaration) { m.DiabetesControl = true },
		func(m *MedicalDeclaration) { m.OtherConditions = true },
	}
	assert.False(t, NeedsMedicalClearance(MedicalDeclaration{}))
	for i, set := range flags {
		var m MedicalDeclaration
		set(&m)
		assert.True(t, NeedsMedicalClearance(m), "flag %d", i)
	}
}

func TestValidateSubmissionReportsAllSteps(t *testing.T) {
	sub := BookingSubmission{ContactInfo: validContact(), TimePreferences: validTimes()}
	require.NoError(t, ValidateSubmission(sub))

	sub.Email = ""
	sub.TimePreferences.TimePreferences = nil
	ve, ok := AsValidationError(ValidateSubmission(sub))
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"email", "timePreferences"}, ve.Fields())
	assert.Contains(t, ve.Error(), "email: Email is required")
}

func TestPhoneHelpers(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
		e164  string
	}{
		{"0412 345 678", true, "+61412345678"},
		{"+61 412 345 678", true, "+61412345678"},
		{"(02) 9876-5432", true, "+61298765432"},
		{"0012345678", false, "+61012345678"},
		{"12345", false, "12345"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, IsAustralianPhone(tt.in), tt.in)
		assert.Equal(t, tt.e164, NormalizePhone(tt.in), tt.in)
	}
}

func TestAsValidationErrorRejectsOtherErrors(t *testing.T) {
	_, ok := AsValidationError(errors.New("boom"))
	assert.False(t, ok)
}
