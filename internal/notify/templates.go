package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/novellus/pilates-booking/internal/bookings"
	"github.com/novellus/pilates-booking/internal/schema"
)

// bookingView is the data every template renders from.
type bookingView struct {
	ID             int64
	FirstName      string
	FullName       string
	Email          string
	Phone          string
	Emergency      string
	Studio         string
	Offer          string
	Amount         string
	Slots          []string
	SelectedDate   string
	ClassType      string
	Language       string
	PainAreas      []string
	Conditions     []string
	Notes          string
	PaymentStatus  string
	IntentID       string
	NeedsClearance bool
}

func newBookingView(b *bookings.Booking, studio, offer string) bookingView {
	v := bookingView{
		ID:             b.ID,
		FirstName:      b.FirstName,
		FullName:       b.FullName(),
		Email:          b.Email,
		Phone:          b.PhoneNumber,
		Studio:         studio,
		Offer:          offer,
		Amount:         formatAmount(b.TotalAmount, b.Currency),
		Slots:          b.TimePreferences.TimePreferences,
		SelectedDate:   b.SelectedDate,
		ClassType:      classTypeLabel(b.ClassType),
		Language:       b.Language.Label(),
		Notes:          b.MedicalConditions,
		PaymentStatus:  string(b.PaymentStatus),
		IntentID:       b.StripePaymentIntentID,
		NeedsClearance: b.NeedsMedicalClearance(),
	}
	if b.EmergencyContactName != "" || b.EmergencyContactPhone != "" {
		v.Emergency = strings.TrimSpace(b.EmergencyContactName + " " + b.EmergencyContactPhone)
	}
	for _, p := range b.PainAreas {
		if p == schema.PainNone {
			continue
		}
		v.PainAreas = append(v.PainAreas, painAreaLabel(p))
	}
	v.Conditions = conditionLabels(b.MedicalDeclaration)
	return v
}

func formatAmount(cents int64, currency string) string {
	return fmt.Sprintf("$%d.%02d %s", cents/100, cents%100, strings.ToUpper(currency))
}

func classTypeLabel(c schema.ClassType) string {
	switch c {
	case schema.ClassReformer:
		return "Reformer"
	case schema.ClassBoth:
		return "Mat and Reformer"
	default:
		return "Mat"
	}
}

func painAreaLabel(p schema.PainArea) string {
	s := string(p)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func conditionLabels(m schema.MedicalDeclaration) []string {
	var out []string
	if m.IsPregnant {
		if m.PregnancyWeeks != nil {
			out = append(out, fmt.Sprintf("Pregnant (%d weeks)", *m.PregnancyWeeks))
		} else {
			out = append(out, "Pregnant")
		}
	}
	flags := []struct {
		set   bool
		label string
	}{
		{m.HeartCondition, "Heart condition"},
		{m.ChestPain, "Chest pain during activity"},
		{m.Dizziness, "Dizziness or loss of balance"},
		{m.AsthmaAttack, "Asthma attacks"},
		{m.DiabetesControl, "Difficulty controlling diabetes"},
		{m.OtherConditions, "Other medical conditions"},
	}
	for _, f := range flags {
		if f.set {
			out = append(out, f.label)
		}
	}
	return out
}

var funcs = map[string]any{
	"inc":  func(i int) int { return i + 1 },
	"join": strings.Join,
}

const confirmationText = `Hi {{.FirstName}},

Thanks for booking your {{.Offer}} with {{.Studio}}. We have received your payment of {{.Amount}}.

Booking reference: #{{.ID}}
Class: {{.ClassType}} ({{.Language}})
{{- if .SelectedDate}}
Requested date: {{.SelectedDate}}
{{- end}}

Your preferred times, in order:
{{- range $i, $s := .Slots}}
  {{inc $i}}. {{$s}}
{{- end}}

We will be in touch to confirm the exact time of your session.

What to bring:
  - Comfortable clothes you can move in
  - Grip socks
  - A water bottle
  - Please arrive 10 minutes early
{{- if .NeedsClearance}}

Based on your health questionnaire we need a medical clearance before your first class. We have sent a separate email with the details.
{{- end}}

See you soon,
{{.Studio}}
`

const confirmationHTML = `<div style="font-family: sans-serif; max-width: 600px;">
<h2>Your Pilates booking is confirmed</h2>
<p>Hi {{.FirstName}}, thanks for booking your <strong>{{.Offer}}</strong> with {{.Studio}}. We have received your payment of <strong>{{.Amount}}</strong>.</p>
<p>Booking reference: <strong>#{{.ID}}</strong><br>Class: {{.ClassType}} ({{.Language}}){{if .SelectedDate}}<br>Requested date: {{.SelectedDate}}{{end}}</p>
<p>Your preferred times, in order:</p>
<ol>{{range .Slots}}<li>{{.}}</li>{{end}}</ol>
<p>We will be in touch to confirm the exact time of your session.</p>
<h3>What to bring</h3>
<ul><li>Comfortable clothes you can move in</li><li>Grip socks</li><li>A water bottle</li><li>Please arrive 10 minutes early</li></ul>
{{if .NeedsClearance}}<p style="background: #fef3c7; padding: 12px; border-left: 4px solid #f59e0b;">Based on your health questionnaire we need a medical clearance before your first class. We have sent a separate email with the details.</p>{{end}}
<p style="color: #6b7280; font-size: 12px;">{{.Studio}}</p>
</div>`

const confirmationSMS = `Hi {{.FirstName}}, your {{.Studio}} Pilates booking #{{.ID}} is confirmed ({{.Amount}} paid). We'll contact you to lock in a time from your preferences: {{join .Slots ", "}}.`

const adminText = `New paid booking #{{.ID}}

Name: {{.FullName}}
Phone: {{.Phone}}
Email: {{.Email}}
{{- if .Emergency}}
Emergency contact: {{.Emergency}}
{{- end}}
Class: {{.ClassType}} ({{.Language}})
{{- if .SelectedDate}}
Requested date: {{.SelectedDate}}
{{- end}}
Preferred times: {{join .Slots ", "}}
Amount: {{.Amount}}
Payment: {{.PaymentStatus}}{{if .IntentID}} ({{.IntentID}}){{end}}

Pain areas: {{if .PainAreas}}{{join .PainAreas ", "}}{{else}}none{{end}}
Health flags: {{if .Conditions}}{{join .Conditions ", "}}{{else}}none{{end}}
{{- if .Notes}}
Notes: {{.Notes}}
{{- end}}
{{- if .NeedsClearance}}

MEDICAL CLEARANCE REQUIRED before the first class.
{{- end}}
`

const adminHTML = `<div style="font-family: sans-serif; max-width: 600px;">
<h2>New paid booking #{{.ID}}</h2>
<table style="border-collapse: collapse;">
<tr><td><strong>Name</strong></td><td>{{.FullName}}</td></tr>
<tr><td><strong>Phone</strong></td><td>{{.Phone}}</td></tr>
<tr><td><strong>Email</strong></td><td>{{.Email}}</td></tr>
{{if .Emergency}}<tr><td><strong>Emergency contact</strong></td><td>{{.Emergency}}</td></tr>{{end}}
<tr><td><strong>Class</strong></td><td>{{.ClassType}} ({{.Language}})</td></tr>
<tr><td><strong>Preferred times</strong></td><td>{{join .Slots ", "}}</td></tr>
<tr><td><strong>Amount</strong></td><td>{{.Amount}}</td></tr>
<tr><td><strong>Pain areas</strong></td><td>{{if .PainAreas}}{{join .PainAreas ", "}}{{else}}none{{end}}</td></tr>
<tr><td><strong>Health flags</strong></td><td>{{if .Conditions}}{{join .Conditions ", "}}{{else}}none{{end}}</td></tr>
{{if .Notes}}<tr><td><strong>Notes</strong></td><td>{{.Notes}}</td></tr>{{end}}
</table>
{{if .NeedsClearance}}<p style="color: #b91c1c;"><strong>Medical clearance required before the first class.</strong></p>{{end}}
</div>`

const medicalText = `Hi {{.FirstName}},

Thank you for completing the health questionnaire for your booking #{{.ID}} with {{.Studio}}.

Because you told us about the following, we need a medical clearance from your doctor or physiotherapist before your first class:
{{- range .Conditions}}
  - {{.}}
{{- end}}
{{- if .PainAreas}}

Areas of pain or discomfort you reported: {{join .PainAreas ", "}}
{{- end}}
{{- if .Notes}}

Your notes: {{.Notes}}
{{- end}}

Please reply to this email with the signed clearance, or bring it with you to your first session.

{{.Studio}}
`

const medicalHTML = `<div style="font-family: sans-serif; max-width: 600px;">
<h2>Medical clearance required</h2>
<p>Hi {{.FirstName}}, thank you for completing the health questionnaire for your booking <strong>#{{.ID}}</strong> with {{.Studio}}.</p>
<p>Because you told us about the following, we need a medical clearance from your doctor or physiotherapist before your first class:</p>
<ul>{{range .Conditions}}<li>{{.}}</li>{{end}}</ul>
{{if .PainAreas}}<p>Areas of pain or discomfort you reported: {{join .PainAreas ", "}}</p>{{end}}
{{if .Notes}}<p>Your notes: {{.Notes}}</p>{{end}}
<p>Please reply to this email with the signed clearance, or bring it with you to your first session.</p>
<p style="color: #6b7280; font-size: 12px;">{{.Studio}}</p>
</div>`

var (
	textTemplates = texttemplate.Must(texttemplate.New("notify").Funcs(funcs).Option("missingkey=error").Parse(
		`{{define "confirmation"}}` + confirmationText + `{{end}}` +
			`{{define "sms"}}` + confirmationSMS + `{{end}}` +
			`{{define "admin"}}` + adminText + `{{end}}` +
			`{{define "medical"}}` + medicalText + `{{end}}`))
	htmlTemplates = htmltemplate.Must(htmltemplate.New("notify").Funcs(funcs).Parse(
		`{{define "confirmation"}}` + confirmationHTML + `{{end}}` +
			`{{define "admin"}}` + adminHTML + `{{end}}` +
			`{{define "medical"}}` + medicalHTML + `{{end}}`))
)

func renderText(name string, v bookingView) (string, error) {
	var buf bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&buf, name, v); err != nil {
		return "", fmt.Errorf("notify: render %s text: %w", name, err)
	}
	return buf.String(), nil
}

func renderHTML(name string, v bookingView) (string, error) {
	var buf bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&buf, name, v); err != nil {
		return "", fmt.Errorf("notify: render %s html: %w", name, err)
	}
	return buf.String(), nil
}
