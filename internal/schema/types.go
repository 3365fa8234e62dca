// Package schema defines the per-step booking form payloads and the rules
// they must satisfy. The wizard uses it before advancing a step and the API
// uses it again before anything is persisted.
package schema

import "strings"

// ClassType is the kind of class the customer is booking.
type ClassType string

const (
	ClassMat      ClassType = "mat"
	ClassReformer ClassType = "reformer"
	ClassBoth     ClassType = "both"
)

// Language is the instruction language for the session.
type Language string

const (
	LanguageEnglish Language = "english"
	LanguageSpanish Language = "spanish"
)

// Label returns the customer-facing language name.
func (l Language) Label() string {
	if l == LanguageSpanish {
		return "Español"
	}
	return "English"
}

// PainArea tags a body area the customer reported discomfort in.
type PainArea string

const (
	PainNeck      PainArea = "neck"
	PainShoulders PainArea = "shoulders"
	PainBack      PainArea = "back"
	PainHips      PainArea = "hips"
	PainKnees     PainArea = "knees"
	PainAnkles    PainArea = "ankles"
	PainOther     PainArea = "other"
	PainNone      PainArea = "none"
)

// MaxTimePreferences caps how many ranked slots a customer may pick.
const MaxTimePreferences = 3

// TimeSlots is the catalogue of bookable start times, in display order.
var TimeSlots = []string{
	"7.00 am", "8.00 am", "9.00 am", "10.00 am",
	"1.00 pm", "2.00 pm", "3.00 pm",
	"5.00 pm", "6.00 pm", "7.00 pm",
}

// IsTimeSlot reports whether s is in the slot catalogue.
func IsTimeSlot(s string) bool {
	for _, slot := range TimeSlots {
		if slot == s {
			return true
		}
	}
	return false
}

// TimePreferences is step 1: ranked slots, class type and language.
// The first entry of TimePreferences is the most preferred.
type TimePreferences struct {
	SelectedDate    string    `json:"selectedDate,omitempty" validate:"omitempty,classdate"`
	TimePreferences []string  `json:"timePreferences" validate:"required,min=1,max=3,unique,dive,timeslot"`
	ClassType       ClassType `json:"classType" validate:"required,oneof=mat reformer both"`
	Language        Language  `json:"language" validate:"required,oneof=english spanish"`
}

// Normalize trims input and applies defaults.
func (t *TimePreferences) Normalize() {
	t.SelectedDate = strings.TrimSpace(t.SelectedDate)
	for i, slot := range t.TimePreferences {
		t.TimePreferences[i] = strings.TrimSpace(slot)
	}
	if t.ClassType == "" {
		t.ClassType = ClassMat
	}
	if t.Language == "" {
		t.Language = LanguageEnglish
	}
}

// ContactInfo is step 2.
type ContactInfo struct {
	FirstName             string `json:"firstName" validate:"required,max=50"`
	LastName              string `json:"lastName" validate:"required,max=50"`
	PhoneNumber           string `json:"phoneNumber" validate:"required,auphone"`
	Email                 string `json:"email" validate:"required,email,max=254"`
	EmergencyContactName  string `json:"emergencyContactName,omitempty" validate:"omitempty,max=100"`
	EmergencyContactPhone string `json:"emergencyContactPhone,omitempty" validate:"omitempty,auphone"`
}

// Normalize trims every field.
func (c *ContactInfo) Normalize() {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.PhoneNumber = strings.TrimSpace(c.PhoneNumber)
	c.Email = strings.TrimSpace(c.Email)
	c.EmergencyContactName = strings.TrimSpace(c.EmergencyContactName)
	c.EmergencyContactPhone = strings.TrimSpace(c.EmergencyContactPhone)
}

// MedicalDeclaration is step 3.
type MedicalDeclaration struct {
	PainAreas            []PainArea `json:"painAreas,omitempty" validate:"omitempty,unique,dive,oneof=neck shoulders back hips knees ankles other none"`
	IsPregnant           bool       `json:"isPregnant"`
	PregnancyWeeks       *int       `json:"pregnancyWeeks,omitempty" validate:"omitempty,min=1,max=42"`
	HeartCondition       bool       `json:"heartCondition"`
	ChestPain            bool       `json:"chestPain"`
	Dizziness            bool       `json:"dizziness"`
	AsthmaAttack         bool       `json:"asthmaAttack"`
	DiabetesControl      bool       `json:"diabetesControl"`
	OtherConditions      bool       `json:"otherConditions"`
	MedicalConditions    string     `json:"medicalConditions,omitempty" validate:"max=2000"`
	HasMedicalConditions bool       `json:"hasMedicalConditions"`
}

// Normalize drops pregnancy weeks when not pregnant and derives
// HasMedicalConditions from the screening answers.
func (m *MedicalDeclaration) Normalize() {
	m.MedicalConditions = strings.TrimSpace(m.MedicalConditions)
	if !m.IsPregnant {
		m.PregnancyWeeks = nil
	}
	m.HasMedicalConditions = NeedsMedicalClearance(*m)
}

// PaymentConsent is the step 4 acknowledgement required before payment.
type PaymentConsent struct {
	TermsAccepted              bool `json:"termsAccepted" validate:"required"`
	CancellationPolicyAccepted bool `json:"cancellationPolicyAccepted" validate:"required"`
}

// BookingSubmission is the flattened accumulator posted to the API once
// steps 1-3 are complete.
type BookingSubmission struct {
	ContactInfo
	TimePreferences
	MedicalDeclaration
}

// Normalize normalizes every embedded step.
func (b *BookingSubmission) Normalize() {
	b.ContactInfo.Normalize()
	b.TimePreferences.Normalize()
	b.MedicalDeclaration.Normalize()
}

// NeedsMedicalClearance reports whether any screening answer requires a
// doctor's sign-off. Pain areas alone never do.
func NeedsMedicalClearance(m MedicalDeclaration) bool {
	return m.IsPregnant ||
		m.HeartCondition ||
		m.ChestPain ||
		m.Dizziness ||
		m.AsthmaAttack ||
		m.DiabetesControl ||
		m.OtherConditions
}
