package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/novellus/pilates-booking/pkg/logging"
)

var twilioTracer = otel.Tracer("pilates.internal.notify.twilio")

// SMSSender sends SMS messages to customers.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

const defaultTwilioBaseURL = "https://api.twilio.com"

// TwilioSender posts SMS messages using Twilio's REST API. It does not
// retry; a failed send is reported once and left to the caller.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewTwilioSender builds a sender with sane defaults.
func NewTwilioSender(accountSID, authToken, from string, logger *logging.Logger) *TwilioSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    defaultTwilioBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL points the sender at another API host (tests, proxies).
func (s *TwilioSender) WithBaseURL(base string) *TwilioSender {
	s.baseURL = strings.TrimRight(base, "/")
	return s
}

// SendSMS dispatches a single message.
func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) error {
	if s.accountSID == "" || s.authToken == "" {
		return errors.New("notify: twilio credentials missing")
	}
	if s.from == "" {
		return errors.New("notify: twilio from number required")
	}
	if to == "" {
		return errors.New("notify: sms recipient required")
	}
	if strings.TrimSpace(body) == "" {
		return errors.New("notify: sms body required")
	}

	ctx, span := twilioTracer.Start(ctx, "notify.twilio.send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	payload := url.Values{}
	payload.Set("To", to)
	payload.Set("From", s.from)
	payload.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("notify: twilio request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("notify: twilio send: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("notify: twilio send failed: %s", formatTwilioError(resp.StatusCode, respBody))
		span.RecordError(err)
		return err
	}

	var parsed struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	_ = json.Unmarshal(respBody, &parsed)
	s.logger.Info("twilio sms sent", "to", to, "sid", parsed.SID, "status", parsed.Status)
	return nil
}

type twilioAPIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}

// StubSMSSender is a no-op sender for testing.
type StubSMSSender struct {
	logger *logging.Logger
}

// NewStubSMSSender creates a stub SMS sender.
func NewStubSMSSender(logger *logging.Logger) *StubSMSSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubSMSSender{logger: logger}
}

// SendSMS logs but doesn't send.
func (s *StubSMSSender) SendSMS(ctx context.Context, to, body string) error {
	s.logger.Info("stub SMS sender: would send", "to", to, "body_preview", truncate(body, 50))
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

var (
	_ SMSSender = (*TwilioSender)(nil)
	_ SMSSender = (*StubSMSSender)(nil)
)
