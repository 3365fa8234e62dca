package notify

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/novellus/pilates-booking/pkg/logging"
)

// EmailSender delivers booking emails through one provider.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is one booking email. BookingID and Category are passed to
// the provider as tracking metadata.
type EmailMessage struct {
	To      string
	ToName  string
	ReplyTo string
	Subject string
	Body    string // Plain text body
	HTML    string // Optional HTML body

	BookingID int64
	Category  string
}

// Email categories, one per dispatcher operation.
const (
	CategoryConfirmation     = "booking-confirmation"
	CategoryAdminSummary     = "booking-admin-summary"
	CategoryMedicalClearance = "medical-clearance"
)

const (
	defaultFromName = "Novellus Wellness"
	studioTag       = "pilates-booking"
)

// trackingTags lists the provider tags for a message, studio tag first.
func (m EmailMessage) trackingTags() []string {
	tags := []string{studioTag}
	if m.Category != "" {
		tags = append(tags, m.Category)
	}
	return tags
}

func (m EmailMessage) bookingRef() string {
	if m.BookingID <= 0 {
		return ""
	}
	return strconv.FormatInt(m.BookingID, 10)
}

// SendGridSender delivers booking emails through the SendGrid v3 API.
type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NewSendGridSender creates a new SendGrid email sender.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SendGridSender{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

// Send delivers msg through SendGrid.
func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}

	message := s.buildMessage(msg)
	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		s.logger.Error("sendgrid send failed", "error", err, "to", msg.To, "booking_id", msg.BookingID)
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}

	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid returned error status", "status", response.StatusCode, "body", response.Body, "to", msg.To, "booking_id", msg.BookingID)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Info("email sent via sendgrid",
		"to", msg.To,
		"category", msg.Category,
		"booking_id", msg.BookingID,
		"status", response.StatusCode,
	)
	return nil
}

// buildMessage maps a booking email onto a v3 mail body with the booking id
// as a custom arg.
func (s *SendGridSender) buildMessage(msg EmailMessage) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(s.fromName, s.fromEmail))
	m.Subject = msg.Subject

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(msg.ToName, msg.To))
	if ref := msg.bookingRef(); ref != "" {
		p.SetCustomArg("booking_id", ref)
	}
	m.AddPersonalizations(p)

	if msg.Body != "" {
		m.AddContent(mail.NewContent("text/plain", msg.Body))
	}
	html := msg.HTML
	if html == "" {
		html = msg.Body
	}
	m.AddContent(mail.NewContent("text/html", html))

	m.AddCategories(msg.trackingTags()...)
	if msg.ReplyTo != "" {
		m.SetReplyTo(mail.NewEmail("", msg.ReplyTo))
	}
	return m
}

// StubEmailSender is a no-op sender for testing or when email is disabled.
type StubEmailSender struct {
	logger *logging.Logger
}

// NewStubEmailSender creates a stub email sender that logs but doesn't send.
func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

// Send logs the email but doesn't actually send it.
func (s *StubEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	s.logger.Info("stub email sender: would send email", "to", msg.To, "subject", msg.Subject, "category", msg.Category, "booking_id", msg.BookingID)
	return nil
}

var (
	_ EmailSender = (*SendGridSender)(nil)
	_ EmailSender = (*StubEmailSender)(nil)
)
