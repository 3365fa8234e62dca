package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestTwilioSender_SendSMS(t *testing.T) {
	var form map[string]string
	var user, pass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/2010-04-01/Accounts/AC123/Messages.json") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		user, pass, _ = r.BasicAuth()
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		form = map[string]string{"To": r.PostForm.Get("To"), "From": r.PostForm.Get("From"), "Body": r.PostForm.Get("Body")}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	}))
	defer srv.Close()

	sender := NewTwilioSender("AC123", "secret", "+61400000000", nil).WithBaseURL(srv.URL)
	if err := sender.SendSMS(context.Background(), "+61412345678", "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if user != "AC123" || pass != "secret" {
		t.Errorf("unexpected basic auth %s/%s", user, pass)
	}
	if form["To"] != "+61412345678" || form["From"] != "+61400000000" || form["Body"] != "hello" {
		t.Errorf("unexpected form: %v", form)
	}
}

func TestTwilioSender_NoRetryOnFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"code":20503,"message":"Service unavailable","status":503}`))
	}))
	defer srv.Close()

	sender := NewTwilioSender("AC123", "secret", "+61400000000", nil).WithBaseURL(srv.URL)
	err := sender.SendSMS(context.Background(), "+61412345678", "hello")
	if err == nil || !strings.Contains(err.Error(), "code 20503") {
		t.Fatalf("expected formatted twilio error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly one attempt, got %d", got)
	}
}

func TestTwilioSender_Preconditions(t *testing.T) {
	tests := []struct {
		name   string
		sender *TwilioSender
		to     string
		body   string
	}{
		{"missing creds", NewTwilioSender("", "", "+61400000000", nil), "+61412345678", "hi"},
		{"missing from", NewTwilioSender("AC1", "tok", "", nil), "+61412345678", "hi"},
		{"missing to", NewTwilioSender("AC1", "tok", "+61400000000", nil), "", "hi"},
		{"blank body", NewTwilioSender("AC1", "tok", "+61400000000", nil), "+61412345678", "  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.sender.SendSMS(context.Background(), tt.to, tt.body); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestFormatTwilioError(t *testing.T) {
	if got := formatTwilioError(500, nil); got != "status 500" {
		t.Errorf("unexpected: %s", got)
	}
	if got := formatTwilioError(400, []byte(`{"message":"bad To"}`)); got != "status 400: bad To" {
		t.Errorf("unexpected: %s", got)
	}
	if got := formatTwilioError(502, []byte("gateway")); got != "status 502: gateway" {
		t.Errorf("unexpected: %s", got)
	}
}

func TestNewEmailSenderSelection(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		cfg  EmailProviderConfig
		want string
	}{
		{"auto prefers sendgrid", EmailProviderConfig{Provider: "auto", SendGridAPIKey: "sg", BrevoAPIKey: "br"}, "*notify.SendGridSender"},
		{"auto falls to brevo", EmailProviderConfig{Provider: "auto", BrevoAPIKey: "br"}, "*notify.BrevoSender"},
		{"explicit brevo without key", EmailProviderConfig{Provider: "brevo"}, "*notify.StubEmailSender"},
		{"nothing configured", EmailProviderConfig{}, "*notify.StubEmailSender"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewEmailSender(ctx, tt.cfg, nil)
			if name := typeName(got); name != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, name)
			}
		})
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *SendGridSender:
		return "*notify.SendGridSender"
	case *BrevoSender:
		return "*notify.BrevoSender"
	case *SESSender:
		return "*notify.SESSender"
	case *StubEmailSender:
		return "*notify.StubEmailSender"
	default:
		return "unknown"
	}
}
