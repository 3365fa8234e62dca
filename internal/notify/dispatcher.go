package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/novellus/pilates-booking/internal/bookings"
	"github.com/novellus/pilates-booking/internal/observability/metrics"
	"github.com/novellus/pilates-booking/internal/schema"
	"github.com/novellus/pilates-booking/pkg/logging"
)

// Notification channels reported in Result and metrics.
const (
	ChannelCustomerEmail = "customer_email"
	ChannelCustomerSMS   = "customer_sms"
	ChannelAdminEmail    = "admin_email"
	ChannelMedicalEmail  = "medical_email"
)

// ErrNoRecipient is reported when a channel has nowhere to send.
var ErrNoRecipient = errors.New("notify: recipient not configured")

// Result is the outcome of one best-effort notification.
type Result struct {
	Channel string
	OK      bool
	Skipped bool
	Err     error
}

// DispatcherConfig carries studio details rendered into messages.
type DispatcherConfig struct {
	StudioName string
	OfferName  string
	AdminEmail string
}

// Dispatcher sends booking notifications. Every operation reports its
// outcome as a Result and never returns an error to the caller.
type Dispatcher struct {
	email   EmailSender
	sms     SMSSender
	cfg     DispatcherConfig
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
}

// NewDispatcher wires senders. Nil senders fall back to stubs.
func NewDispatcher(email EmailSender, sms SMSSender, cfg DispatcherConfig, m *metrics.BookingMetrics, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	if email == nil {
		email = NewStubEmailSender(logger)
	}
	if sms == nil {
		sms = NewStubSMSSender(logger)
	}
	if cfg.StudioName == "" {
		cfg.StudioName = defaultFromName
	}
	if cfg.OfferName == "" {
		cfg.OfferName = "Introduction Pilates Session"
	}
	return &Dispatcher{email: email, sms: sms, cfg: cfg, metrics: m, logger: logger}
}

// SendConfirmationEmail emails the customer their booking summary.
func (d *Dispatcher) SendConfirmationEmail(ctx context.Context, b *bookings.Booking) Result {
	return d.run(ctx, ChannelCustomerEmail, b, func(v bookingView) error {
		if b.Email == "" {
			return ErrNoRecipient
		}
		msg, err := d.buildEmail("confirmation", CategoryConfirmation, v)
		if err != nil {
			return err
		}
		msg.To = b.Email
		msg.ToName = b.FullName()
		msg.ReplyTo = d.cfg.AdminEmail
		msg.Subject = fmt.Sprintf("Your %s booking is confirmed", d.cfg.StudioName)
		return d.email.Send(ctx, msg)
	})
}

// SendConfirmationSMS texts the customer in E.164 form.
func (d *Dispatcher) SendConfirmationSMS(ctx context.Context, b *bookings.Booking) Result {
	return d.run(ctx, ChannelCustomerSMS, b, func(v bookingView) error {
		if b.PhoneNumber == "" {
			return ErrNoRecipient
		}
		body, err := renderText("sms", v)
		if err != nil {
			return err
		}
		return d.sms.SendSMS(ctx, schema.NormalizePhone(b.PhoneNumber), body)
	})
}

// SendAdminNotification emails the studio a full summary. It is skipped
// when no admin address is configured.
func (d *Dispatcher) SendAdminNotification(ctx context.Context, b *bookings.Booking) Result {
	if d.cfg.AdminEmail == "" {
		return d.record(b, Result{Channel: ChannelAdminEmail, Skipped: true, Err: ErrNoRecipient})
	}
	return d.run(ctx, ChannelAdminEmail, b, func(v bookingView) error {
		msg, err := d.buildEmail("admin", CategoryAdminSummary, v)
		if err != nil {
			return err
		}
		msg.To = d.cfg.AdminEmail
		msg.ToName = d.cfg.StudioName
		// Replies from the studio go straight to the customer.
		msg.ReplyTo = b.Email
		msg.Subject = fmt.Sprintf("New booking #%d - %s", b.ID, b.FullName())
		if v.NeedsClearance {
			msg.Subject += " (medical clearance required)"
		}
		return d.email.Send(ctx, msg)
	})
}

// SendMedicalClearanceEmail asks the customer for a doctor's clearance. It
// is a successful no-op when the declaration does not require one.
func (d *Dispatcher) SendMedicalClearanceEmail(ctx context.Context, b *bookings.Booking) Result {
	if b != nil && !b.NeedsMedicalClearance() {
		return d.record(b, Result{Channel: ChannelMedicalEmail, OK: true, Skipped: true})
	}
	return d.run(ctx, ChannelMedicalEmail, b, func(v bookingView) error {
		if b.Email == "" {
			return ErrNoRecipient
		}
		msg, err := d.buildEmail("medical", CategoryMedicalClearance, v)
		if err != nil {
			return err
		}
		msg.To = b.Email
		msg.ToName = b.FullName()
		msg.ReplyTo = d.cfg.AdminEmail
		msg.Subject = fmt.Sprintf("Medical clearance needed for your %s class", d.cfg.StudioName)
		return d.email.Send(ctx, msg)
	})
}

// NotifyPaymentConfirmed sends every post-payment notification in order.
func (d *Dispatcher) NotifyPaymentConfirmed(ctx context.Context, b *bookings.Booking) []Result {
	return []Result{
		d.SendConfirmationEmail(ctx, b),
		d.SendConfirmationSMS(ctx, b),
		d.SendAdminNotification(ctx, b),
		d.SendMedicalClearanceEmail(ctx, b),
	}
}

func (d *Dispatcher) buildEmail(name, category string, v bookingView) (EmailMessage, error) {
	text, err := renderText(name, v)
	if err != nil {
		return EmailMessage{}, err
	}
	html, err := renderHTML(name, v)
	if err != nil {
		return EmailMessage{}, err
	}
	return EmailMessage{Body: text, HTML: html, BookingID: v.ID, Category: category}, nil
}

func (d *Dispatcher) run(ctx context.Context, channel string, b *bookings.Booking, send func(bookingView) error) (res Result) {
	res.Channel = channel
	if b == nil {
		res.Err = errors.New("notify: booking required")
		return d.record(b, res)
	}
	defer func() {
		if p := recover(); p != nil {
			res = d.record(b, Result{Channel: channel, Err: fmt.Errorf("notify: %s panicked: %v", channel, p)})
		}
	}()

	err := send(newBookingView(b, d.cfg.StudioName, d.cfg.OfferName))
	res.OK = err == nil
	res.Err = err
	return d.record(b, res)
}

func (d *Dispatcher) record(b *bookings.Booking, res Result) Result {
	var id int64
	if b != nil {
		id = b.ID
	}
	d.metrics.ObserveNotification(res.Channel, res.OK, res.Skipped)
	switch {
	case res.Skipped:
		d.logger.Debug("notification skipped", "channel", res.Channel, "booking_id", id, "reason", errString(res.Err))
	case res.OK:
		d.logger.Info("notification sent", "channel", res.Channel, "booking_id", id)
	default:
		d.logger.Error("notification failed", "channel", res.Channel, "booking_id", id, "error", res.Err)
	}
	return res
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
