package schema

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one rejected field using its JSON name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field failure for a payload.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Fields returns the failing field names in order.
func (e *ValidationError) Fields() []string {
	out := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		out = append(out, fe.Field)
	}
	return out
}

// AsValidationError unwraps err into a *ValidationError when possible.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

var auPhonePattern = regexp.MustCompile(`^(0[2-9]\d{8}|61[2-9]\d{8})$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(v, "auphone", func(fl validator.FieldLevel) bool {
		return IsAustralianPhone(fl.Field().String())
	})
	mustRegister(v, "timeslot", func(fl validator.FieldLevel) bool {
		return IsTimeSlot(fl.Field().String())
	})
	mustRegister(v, "classdate", func(fl validator.FieldLevel) bool {
		_, err := ParseClassDate(fl.Field().String())
		return err == nil
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("schema: register %s: %v", tag, err))
	}
}

// IsAustralianPhone accepts local (0X XXXX XXXX) and international
// (+61 X XXXX XXXX) numbers. Spaces, dashes and brackets are ignored.
func IsAustralianPhone(raw string) bool {
	return auPhonePattern.MatchString(digitsOnly(raw))
}

// NormalizePhone converts an Australian number to E.164. Numbers that do
// not look Australian are returned trimmed but otherwise untouched.
func NormalizePhone(raw string) string {
	digits := digitsOnly(raw)
	switch {
	case len(digits) == 10 && strings.HasPrefix(digits, "0"):
		return "+61" + digits[1:]
	case len(digits) == 11 && strings.HasPrefix(digits, "61"):
		return "+" + digits
	default:
		return strings.TrimSpace(raw)
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseClassDate accepts a calendar date (2006-01-02) or an RFC 3339
// timestamp as produced by browser date pickers.
func ParseClassDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("schema: invalid class date %q", s)
	}
	return t, nil
}

// ValidateTimePreferences checks step 1.
func ValidateTimePreferences(t TimePreferences) error {
	return run(t)
}

// ValidateContact checks step 2.
func ValidateContact(c ContactInfo) error {
	return run(c)
}

// ValidateMedical checks step 3.
func ValidateMedical(m MedicalDeclaration) error {
	return run(m)
}

// ValidatePaymentConsent checks step 4.
func ValidatePaymentConsent(p PaymentConsent) error {
	return run(p)
}

// ValidateSubmission checks the full accumulator sent to the booking API.
func ValidateSubmission(b BookingSubmission) error {
	return run(b)
}

func run(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("schema: %w", err)
	}
	out := &ValidationError{Errors: make([]FieldError, 0, len(verrs))}
	seen := make(map[string]bool, len(verrs))
	for _, fe := range verrs {
		field := fieldName(fe)
		if seen[field] {
			continue
		}
		seen[field] = true
		out.Errors = append(out.Errors, FieldError{Field: field, Message: message(field, fe)})
	}
	return out
}

// fieldName strips the dive index so timePreferences[1] reports as
// timePreferences.
func fieldName(fe validator.FieldError) string {
	name := fe.Field()
	if i := strings.IndexByte(name, '['); i > 0 {
		name = name[:i]
	}
	return name
}

var messages = map[string]string{
	"firstName.required":                  "First name is required",
	"firstName.max":                       "First name must be 50 characters or fewer",
	"lastName.required":                   "Last name is required",
	"lastName.max":                        "Last name must be 50 characters or fewer",
	"phoneNumber.required":                "Phone number is required",
	"phoneNumber.auphone":                 "Please enter a valid Australian phone number",
	"email.required":                      "Email is required",
	"email.email":                         "Please enter a valid email address",
	"emergencyContactPhone.auphone":       "Please enter a valid Australian phone number",
	"emergencyContactName.max":            "Emergency contact name must be 100 characters or fewer",
	"timePreferences.required":            "Please select at least one time preference",
	"timePreferences.min":                 "Please select at least one time preference",
	"timePreferences.max":                 "You can select up to 3 time preferences",
	"timePreferences.unique":              "Each time preference can only be selected once",
	"timePreferences.timeslot":            "Please choose from the available time slots",
	"classType.required":                  "Please select a class type",
	"classType.oneof":                     "Please select a valid class type",
	"language.required":                   "Please select a language",
	"language.oneof":                      "Please select a valid language",
	"selectedDate.classdate":              "Please choose a valid date",
	"painAreas.unique":                    "Each pain area can only be selected once",
	"painAreas.oneof":                     "Please choose from the listed pain areas",
	"pregnancyWeeks.min":                  "Pregnancy weeks must be between 1 and 42",
	"pregnancyWeeks.max":                  "Pregnancy weeks must be between 1 and 42",
	"medicalConditions.max":               "Medical notes must be 2000 characters or fewer",
	"termsAccepted.required":              "Please accept the terms and conditions to continue",
	"cancellationPolicyAccepted.required": "Please accept the cancellation policy to continue",
}

func message(field string, fe validator.FieldError) string {
	if msg, ok := messages[field+"."+fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return field + " is too long"
	case "min":
		return field + " is too short"
	default:
		return field + " is invalid"
	}
}
