package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/novellus/pilates-booking/pkg/logging"
)

const defaultBrevoURL = "https://api.brevo.com/v3/smtp/email"

// BrevoSender sends transactional email through Brevo's REST API.
type BrevoSender struct {
	apiKey     string
	endpoint   string
	fromEmail  string
	fromName   string
	httpClient *http.Client
	logger     *logging.Logger
}

// BrevoConfig holds configuration for Brevo.
type BrevoConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	Endpoint  string // overrides the public API URL
}

// NewBrevoSender returns nil when no API key is configured.
func NewBrevoSender(cfg BrevoConfig, logger *logging.Logger) *BrevoSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultBrevoURL
	}
	return &BrevoSender{
		apiKey:     cfg.APIKey,
		endpoint:   cfg.Endpoint,
		fromEmail:  cfg.FromEmail,
		fromName:   cfg.FromName,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoRequest struct {
	Sender      brevoContact      `json:"sender"`
	To          []brevoContact    `json:"to"`
	ReplyTo     *brevoContact     `json:"replyTo,omitempty"`
	Subject     string            `json:"subject"`
	HTMLContent string            `json:"htmlContent,omitempty"`
	TextContent string            `json:"textContent,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// Send posts a single email.
func (s *BrevoSender) Send(ctx context.Context, msg EmailMessage) error {
	payload := brevoRequest{
		Sender:      brevoContact{Email: s.fromEmail, Name: s.fromName},
		To:          []brevoContact{{Email: msg.To, Name: msg.ToName}},
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
		TextContent: msg.Body,
		Tags:        msg.trackingTags(),
	}
	if payload.HTMLContent == "" {
		payload.HTMLContent = msg.Body
	}
	if msg.ReplyTo != "" {
		payload.ReplyTo = &brevoContact{Email: msg.ReplyTo}
	}
	if ref := msg.bookingRef(); ref != "" {
		payload.Headers = map[string]string{"X-Booking-Id": ref}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: brevo encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("notify: brevo request: %w", err)
	}
	req.Header.Set("api-key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error("brevo send failed", "error", err, "to", msg.To)
		return fmt.Errorf("notify: brevo send failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		s.logger.Error("brevo returned error status", "status", resp.StatusCode, "body", strings.TrimSpace(string(body)), "to", msg.To)
		return fmt.Errorf("notify: brevo returned status %d", resp.StatusCode)
	}

	var parsed struct {
		MessageID string `json:"messageId"`
	}
	_ = json.Unmarshal(body, &parsed)
	s.logger.Info("email sent via brevo",
		"to", msg.To,
		"category", msg.Category,
		"booking_id", msg.BookingID,
		"message_id", parsed.MessageID,
	)
	return nil
}

var _ EmailSender = (*BrevoSender)(nil)
