package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novellus/pilates-booking/internal/app/bootstrap"
	appconfig "github.com/novellus/pilates-booking/internal/config"
	httpmiddleware "github.com/novellus/pilates-booking/internal/http/middleware"
	"github.com/novellus/pilates-booking/internal/payments"
	"github.com/novellus/pilates-booking/pkg/logging"
)

type fixedGateway struct{}

func (fixedGateway) CreateIntent(ctx context.Context, p payments.IntentParams) (*payments.Intent, error) {
	return &payments.Intent{ID: "pi_ctl", ClientSecret: "pi_ctl_secret", Status: "requires_payment_method"}, nil
}

func (fixedGateway) RetrieveIntent(ctx context.Context, id string) (*payments.Intent, error) {
	return nil, payments.ErrIntentNotFound
}

func startAPI(t *testing.T) string {
	t.Helper()
	app, err := bootstrap.Build(context.Background(), &appconfig.Config{
		StripeCurrency:   "aud",
		OfferAmountCents: 3000,
		OfferName:        "Introduction Pilates Session",
		RateLimitRPS:     100,
		RateLimitBurst:   100,
	}, logging.New("error"), bootstrap.Deps{Gateway: fixedGateway{}, Registry: prometheus.NewRegistry()})
	require.NoError(t, err)
	t.Cleanup(app.Close)

	ts := httptest.NewServer(app.Handler)
	t.Cleanup(ts.Close)
	return ts.URL
}

func writeAnswers(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "answers.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRunRequiresCommand(t *testing.T) {
	err := run(context.Background(), nil, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage")

	err = run(context.Background(), []string{"nope"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestBookWalksWizardAndPrintsCheckout(t *testing.T) {
	api := startAPI(t)
	path := writeAnswers(t, `{
		"timePreferences": {"timePreferences": ["7.00 am"], "classType": "reformer"},
		"contact": {"firstName": "Jane", "lastName": "Citizen", "phoneNumber": "0412345678", "email": "jane@example.com"},
		"medical": {"painAreas": ["back"]},
		"payment": {"termsAccepted": true, "cancellationPolicyAccepted": true}
	}`)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"book", "-api", api, "-answers", path}, &out))

	text := out.String()
	assert.Contains(t, text, "Contact Details ok")
	idx := strings.Index(text, "{")
	require.GreaterOrEqual(t, idx, 0)
	var checkout struct {
		ClientSecret    string `json:"clientSecret"`
		PaymentIntentID string `json:"paymentIntentId"`
		Booking         struct {
			ID            int64  `json:"id"`
			PaymentStatus string `json:"paymentStatus"`
		} `json:"booking"`
	}
	require.NoError(t, json.Unmarshal([]byte(text[idx:]), &checkout))
	assert.Equal(t, "pi_ctl_secret", checkout.ClientSecret)
	assert.Equal(t, "pending", checkout.Booking.PaymentStatus)

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"get", "-api", api, "-id", strconv.FormatInt(checkout.Booking.ID, 10)}, &out))
	assert.Contains(t, out.String(), `"firstName": "Jane"`)
}

func TestBookStopsAtInvalidStep(t *testing.T) {
	api := startAPI(t)
	path := writeAnswers(t, `{
		"timePreferences": {"timePreferences": ["7.00 am"]},
		"contact": {"firstName": "Jane", "lastName": "Citizen", "phoneNumber": "123", "email": "jane@example.com"}
	}`)

	err := run(context.Background(), []string{"book", "-api", api, "-answers", path}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Contact Details")
}

func TestTokenIssuesVerifiableJWT(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"token", "-secret", "s3cret", "-subject", "owner@studio.example", "-role", "owner", "-ttl", "1h"}, &out)
	require.NoError(t, err)

	claims, err := httpmiddleware.ParseAdminToken("s3cret", strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, httpmiddleware.RoleOwner, claims.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)

	err = run(context.Background(), []string{"token", "-secret", "s3cret", "-subject", "x", "-role", "admin"}, &bytes.Buffer{})
	assert.Error(t, err)
}
