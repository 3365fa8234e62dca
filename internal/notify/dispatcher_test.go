package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/novellus/pilates-booking/internal/bookings"
	"github.com/novellus/pilates-booking/internal/observability/metrics"
	"github.com/novellus/pilates-booking/internal/schema"
)

type mockEmailSender struct {
	sent    []EmailMessage
	failOn  string // fail if To matches this
	callErr error
	panics  bool
}

func (m *mockEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	if m.panics {
		panic("smtp exploded")
	}
	if m.callErr != nil {
		return m.callErr
	}
	if m.failOn != "" && msg.To == m.failOn {
		return errors.New("mock email error")
	}
	m.sent = append(m.sent, msg)
	return nil
}

type mockSMSSender struct {
	sent    []struct{ to, body string }
	callErr error
}

func (m *mockSMSSender) SendSMS(ctx context.Context, to, body string) error {
	if m.callErr != nil {
		return m.callErr
	}
	m.sent = append(m.sent, struct{ to, body string }{to, body})
	return nil
}

func paidBooking() *bookings.Booking {
	return &bookings.Booking{
		ID: 12,
		ContactInfo: schema.ContactInfo{
			FirstName:   "Jane",
			LastName:    "Citizen",
			PhoneNumber: "0412 345 678",
			Email:       "jane@example.com",
		},
		TimePreferences: schema.TimePreferences{
			TimePreferences: []string{"6.00 pm", "7.00 am", "1.00 pm"},
			ClassType:       schema.ClassReformer,
			Language:        schema.LanguageSpanish,
		},
		StripePaymentIntentID: "pi_123",
		PaymentStatus:         bookings.StatusCompleted,
		TotalAmount:           3000,
		Currency:              "aud",
		CreatedAt:             time.Now(),
	}
}

func newTestDispatcher(email EmailSender, sms SMSSender, admin string) *Dispatcher {
	return NewDispatcher(email, sms, DispatcherConfig{StudioName: "Novellus Wellness", OfferName: "Intro Session", AdminEmail: admin},
		metrics.NewBookingMetrics(prometheus.NewRegistry()), nil)
}

func TestSendConfirmationEmail(t *testing.T) {
	email := &mockEmailSender{}
	d := newTestDispatcher(email, &mockSMSSender{}, "")

	res := d.SendConfirmationEmail(context.Background(), paidBooking())
	if !res.OK || res.Err != nil || res.Channel != ChannelCustomerEmail {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(email.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(email.sent))
	}
	msg := email.sent[0]
	if msg.To != "jane@example.com" || msg.ToName != "Jane Citizen" {
		t.Errorf("unexpected recipient: %s / %s", msg.To, msg.ToName)
	}
	first := strings.Index(msg.Body, "1. 6.00 pm")
	second := strings.Index(msg.Body, "2. 7.00 am")
	third := strings.Index(msg.Body, "3. 1.00 pm")
	if first < 0 || second < first || third < second {
		t.Errorf("expected slots in priority order, got body:\n%s", msg.Body)
	}
	for _, want := range []string{"$30.00 AUD", "Reformer", "Español", "Grip socks", "#12"} {
		if !strings.Contains(msg.Body, want) {
			t.Errorf("expected body to contain %q", want)
		}
	}
	if strings.Contains(msg.Body, "medical clearance") {
		t.Errorf("did not expect clearance note for a healthy booking")
	}
	if !strings.Contains(msg.HTML, "<li>6.00 pm</li><li>7.00 am</li><li>1.00 pm</li>") {
		t.Errorf("expected ordered HTML list, got %s", msg.HTML)
	}
}

func TestSendConfirmationSMSUsesE164(t *testing.T) {
	sms := &mockSMSSender{}
	d := newTestDispatcher(&mockEmailSender{}, sms, "")

	res := d.SendConfirmationSMS(context.Background(), paidBooking())
	if !res.OK {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(sms.sent) != 1 || sms.sent[0].to != "+61412345678" {
		t.Fatalf("expected E.164 recipient, got %+v", sms.sent)
	}
	if !strings.Contains(sms.sent[0].body, "6.00 pm, 7.00 am, 1.00 pm") {
		t.Errorf("unexpected sms body: %s", sms.sent[0].body)
	}
}

func TestSendAdminNotification(t *testing.T) {
	email := &mockEmailSender{}
	d := newTestDispatcher(email, &mockSMSSender{}, "")
	res := d.SendAdminNotification(context.Background(), paidBooking())
	if res.OK || !res.Skipped || !errors.Is(res.Err, ErrNoRecipient) {
		t.Fatalf("expected skipped result without admin email, got %+v", res)
	}
	if len(email.sent) != 0 {
		t.Fatalf("expected no email without admin address")
	}

	d = newTestDispatcher(email, &mockSMSSender{}, "studio@example.com")
	b := paidBooking()
	b.HeartCondition = true
	b.PainAreas = []schema.PainArea{schema.PainKnees, schema.PainNone}
	b.MedicalConditions = "Knee surgery 2023"
	res = d.SendAdminNotification(context.Background(), b)
	if !res.OK {
		t.Fatalf("unexpected result: %+v", res)
	}
	msg := email.sent[0]
	if msg.To != "studio@example.com" || !strings.Contains(msg.Subject, "medical clearance required") {
		t.Errorf("unexpected admin email: %s / %s", msg.To, msg.Subject)
	}
	for _, want := range []string{"Heart condition", "Knees", "Knee surgery 2023", "pi_123", "0412 345 678"} {
		if !strings.Contains(msg.Body, want) {
			t.Errorf("expected admin body to contain %q:\n%s", want, msg.Body)
		}
	}
	if strings.Contains(msg.Body, "None") {
		t.Errorf("the none pain area should not be listed")
	}
}

func TestSendMedicalClearanceEmail(t *testing.T) {
	email := &mockEmailSender{}
	d := newTestDispatcher(email, &mockSMSSender{}, "")

	res := d.SendMedicalClearanceEmail(context.Background(), paidBooking())
	if !res.OK || !res.Skipped {
		t.Fatalf("expected skip for healthy booking, got %+v", res)
	}
	if len(email.sent) != 0 {
		t.Fatalf("expected no email")
	}

	b := paidBooking()
	weeks := 24
	b.IsPregnant = true
	b.PregnancyWeeks = &weeks
	b.PainAreas = []schema.PainArea{schema.PainBack}
	res = d.SendMedicalClearanceEmail(context.Background(), b)
	if !res.OK || res.Skipped {
		t.Fatalf("expected clearance email, got %+v", res)
	}
	body := email.sent[0].Body
	if !strings.Contains(body, "Pregnant (24 weeks)") || !strings.Contains(body, "Back") {
		t.Errorf("unexpected clearance body:\n%s", body)
	}
}

func TestEmailsCarryBookingTrackingAndReplyTo(t *testing.T) {
	email := &mockEmailSender{}
	d := newTestDispatcher(email, &mockSMSSender{}, "studio@novellus.example")
	b := paidBooking()
	b.MedicalDeclaration.HeartCondition = true

	d.NotifyPaymentConfirmed(context.Background(), b)

	if len(email.sent) != 3 {
		t.Fatalf("expected 3 emails, got %d", len(email.sent))
	}
	want := []struct{ category, to, replyTo string }{
		{CategoryConfirmation, "jane@example.com", "studio@novellus.example"},
		{CategoryAdminSummary, "studio@novellus.example", "jane@example.com"},
		{CategoryMedicalClearance, "jane@example.com", "studio@novellus.example"},
	}
	for i, w := range want {
		got := email.sent[i]
		if got.Category != w.category || got.To != w.to || got.ReplyTo != w.replyTo {
			t.Errorf("email %d: got category=%q to=%q reply_to=%q, want %+v", i, got.Category, got.To, got.ReplyTo, w)
		}
		if got.BookingID != 12 {
			t.Errorf("email %d: expected booking id 12, got %d", i, got.BookingID)
		}
	}
}

func TestNotifyPaymentConfirmedIsolatesFailures(t *testing.T) {
	email := &mockEmailSender{failOn: "jane@example.com"}
	sms := &mockSMSSender{callErr: errors.New("twilio down")}
	d := newTestDispatcher(email, sms, "studio@example.com")

	results := d.NotifyPaymentConfirmed(context.Background(), paidBooking())
	if len(results) != 4 {
		t.Fatalf("expected four results, got %d", len(results))
	}
	byChannel := map[string]Result{}
	for _, r := range results {
		byChannel[r.Channel] = r
	}
	if byChannel[ChannelCustomerEmail].OK || byChannel[ChannelCustomerSMS].OK {
		t.Errorf("expected customer channels to fail: %+v", results)
	}
	if !byChannel[ChannelAdminEmail].OK {
		t.Errorf("expected admin email to succeed despite other failures: %+v", byChannel[ChannelAdminEmail])
	}
	if !byChannel[ChannelMedicalEmail].Skipped {
		t.Errorf("expected medical email skipped")
	}
}

func TestDispatcherRecoversFromPanickingSender(t *testing.T) {
	d := newTestDispatcher(&mockEmailSender{panics: true}, &mockSMSSender{}, "")
	res := d.SendConfirmationEmail(context.Background(), paidBooking())
	if res.OK || res.Err == nil || !strings.Contains(res.Err.Error(), "panicked") {
		t.Fatalf("expected recovered panic, got %+v", res)
	}
}

func TestDispatcherNilBooking(t *testing.T) {
	d := newTestDispatcher(nil, nil, "")
	if res := d.SendConfirmationSMS(context.Background(), nil); res.OK || res.Err == nil {
		t.Fatalf("expected failure for nil booking, got %+v", res)
	}
}

func TestFormatAmount(t *testing.T) {
	if got := formatAmount(3000, "aud"); got != "$30.00 AUD" {
		t.Errorf("got %s", got)
	}
	if got := formatAmount(1999, "usd"); got != "$19.99 USD" {
		t.Errorf("got %s", got)
	}
}
