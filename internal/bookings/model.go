package bookings

import (
	"encoding/json"
	"time"

	"github.com/novellus/pilates-booking/internal/schema"
)

// PaymentStatus tracks where a booking is in the payment lifecycle.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusCompleted PaymentStatus = "completed"
	StatusFailed    PaymentStatus = "failed"
)

// Valid reports whether s is a known status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s PaymentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition allows pending to move to a terminal status, and any status
// to be re-applied to itself.
func CanTransition(from, to PaymentStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	return from == StatusPending && to.Terminal()
}

// Booking is a persisted booking request. Step payloads are embedded so the
// JSON shape matches what the booking form submits.
type Booking struct {
	ID int64 `json:"id"`
	schema.ContactInfo
	schema.TimePreferences
	schema.MedicalDeclaration

	StripePaymentIntentID string        `json:"stripePaymentIntentId,omitempty"`
	PaymentStatus         PaymentStatus `json:"paymentStatus"`
	TotalAmount           int64         `json:"totalAmount"`
	Currency              string        `json:"currency"`
	CreatedAt             time.Time     `json:"createdAt"`
}

// NeedsMedicalClearance reports whether the studio must see a doctor's
// clearance before the first class.
func (b *Booking) NeedsMedicalClearance() bool {
	return schema.NeedsMedicalClearance(b.MedicalDeclaration)
}

// FullName joins first and last name.
func (b *Booking) FullName() string {
	return b.FirstName + " " + b.LastName
}

// Submission returns the customer-entered part of the booking.
func (b *Booking) Submission() schema.BookingSubmission {
	return schema.BookingSubmission{
		ContactInfo:        b.ContactInfo,
		TimePreferences:    b.TimePreferences,
		MedicalDeclaration: b.MedicalDeclaration,
	}
}

// MarshalJSON adds the derived needsMedicalClearance flag.
func (b Booking) MarshalJSON() ([]byte, error) {
	type plain Booking
	return json.Marshal(struct {
		plain
		NeedsMedicalClearance bool `json:"needsMedicalClearance"`
	}{plain(b), b.NeedsMedicalClearance()})
}

func (b *Booking) clone() *Booking {
	cp := *b
	cp.TimePreferences.TimePreferences = append([]string(nil), b.TimePreferences.TimePreferences...)
	cp.PainAreas = append([]schema.PainArea(nil), b.PainAreas...)
	if b.PregnancyWeeks != nil {
		w := *b.PregnancyWeeks
		cp.PregnancyWeeks = &w
	}
	return &cp
}

// NewBooking is the input to Repository.Create. Amount and currency are
// set by the server, never by the client.
type NewBooking struct {
	Submission  schema.BookingSubmission
	TotalAmount int64
	Currency    string
}

// ListFilter narrows admin listings.
type ListFilter struct {
	Status PaymentStatus
	Limit  int
	Offset int
}

// ListResponse is the admin listing payload.
type ListResponse struct {
	Bookings []*Booking `json:"bookings"`
	Count    int        `json:"count"`
	Offset   int        `json:"offset"`
	Limit    int        `json:"limit"`
}
