package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/novellus/pilates-booking/internal/bookings"
)

const testWebhookSecret = "whsec_test123"

func buildIntentEvent(t *testing.T, eventID, eventType, intentID string, bookingID int64) []byte {
	t.Helper()
	metadata := map[string]string{}
	if bookingID > 0 {
		metadata["bookingId"] = strconv.FormatInt(bookingID, 10)
	}
	evt := map[string]any{
		"id":          eventID,
		"object":      "event",
		"type":        eventType,
		"api_version": "2025-03-31.basil",
		"created":     time.Now().Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":       intentID,
				"object":   "payment_intent",
				"amount":   3000,
				"currency": "aud",
				"metadata": metadata,
			},
		},
	}
	data, err := json.Marshal(evt)
	require.NoError(t, err)
	return data
}

func sendWebhook(t *testing.T, h *StripeWebhookHandler, payload []byte, secret string) *httptest.ResponseRecorder {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

type failingProcessedStore struct{}

func (failingProcessedStore) AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	return false, errors.New("db down")
}

func (failingProcessedStore) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	return false, errors.New("db down")
}

func TestStripeWebhookHandler_Succeeded(t *testing.T) {
	f := newOrchestratorFixture(t)
	resp, err := f.orch.CreateIntent(context.Background(), f.booking.ID)
	require.NoError(t, err)
	f.gateway.setStatus(resp.PaymentIntentID, "succeeded")

	processed := NewInMemoryProcessedStore()
	h := NewStripeWebhookHandler(testWebhookSecret, f.orch, processed, nil)

	payload := buildIntentEvent(t, "evt_1", "payment_intent.succeeded", resp.PaymentIntentID, f.booking.ID)
	rec := sendWebhook(t, h, payload, testWebhookSecret)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := f.repo.GetByID(context.Background(), f.booking.ID)
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusCompleted, stored.PaymentStatus)
	assert.Len(t, f.notifier.calls, 1)

	seen, _ := processed.AlreadyProcessed(context.Background(), "stripe", "evt_1")
	assert.True(t, seen)

	// Redelivery is acknowledged without another lookup.
	before := f.gateway.retrieved
	rec = sendWebhook(t, h, payload, testWebhookSecret)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, before, f.gateway.retrieved)
	assert.Len(t, f.notifier.calls, 1)
}

func TestStripeWebhookHandler_DeclineThenRetrySucceeds(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()
	resp, err := f.orch.CreateIntent(ctx, f.booking.ID)
	require.NoError(t, err)
	f.gateway.setStatus(resp.PaymentIntentID, "requires_payment_method")

	h := NewStripeWebhookHandler(testWebhookSecret, f.orch, nil, nil)
	payload := buildIntentEvent(t, "evt_2", "payment_intent.payment_failed", resp.PaymentIntentID, f.booking.ID)
	rec := sendWebhook(t, h, payload, testWebhookSecret)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, _ := f.repo.GetByID(ctx, f.booking.ID)
	assert.Equal(t, bookings.StatusPending, stored.PaymentStatus)
	assert.Empty(t, f.notifier.calls)

	// The customer retries the card on the same intent.
	f.gateway.setStatus(resp.PaymentIntentID, "succeeded")
	updated, err := f.orch.ConfirmPayment(ctx, f.booking.ID, resp.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusCompleted, updated.PaymentStatus)
	assert.Len(t, f.notifier.calls, 1)
}

func TestStripeWebhookHandler_CanceledFailsBooking(t *testing.T) {
	f := newOrchestratorFixture(t)
	resp, err := f.orch.CreateIntent(context.Background(), f.booking.ID)
	require.NoError(t, err)
	f.gateway.setStatus(resp.PaymentIntentID, "canceled")

	h := NewStripeWebhookHandler(testWebhookSecret, f.orch, nil, nil)
	payload := buildIntentEvent(t, "evt_8", "payment_intent.canceled", resp.PaymentIntentID, f.booking.ID)
	rec := sendWebhook(t, h, payload, testWebhookSecret)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, _ := f.repo.GetByID(context.Background(), f.booking.ID)
	assert.Equal(t, bookings.StatusFailed, stored.PaymentStatus)
	assert.Empty(t, f.notifier.calls)
}

func TestStripeWebhookHandler_InvalidSignature(t *testing.T) {
	f := newOrchestratorFixture(t)
	h := NewStripeWebhookHandler(testWebhookSecret, f.orch, nil, nil)

	payload := buildIntentEvent(t, "evt_3", "payment_intent.succeeded", "pi_1", f.booking.ID)
	rec := sendWebhook(t, h, payload, "whsec_wrong")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, f.gateway.retrieved)
}

func TestStripeWebhookHandler_NotConfigured(t *testing.T) {
	f := newOrchestratorFixture(t)
	h := NewStripeWebhookHandler("", f.orch, nil, nil)

	rec := sendWebhook(t, h, []byte(`{}`), testWebhookSecret)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStripeWebhookHandler_IgnoresOtherEvents(t *testing.T) {
	f := newOrchestratorFixture(t)
	h := NewStripeWebhookHandler(testWebhookSecret, f.orch, failingProcessedStore{}, nil)

	payload := buildIntentEvent(t, "evt_4", "charge.refunded", "pi_1", f.booking.ID)
	rec := sendWebhook(t, h, payload, testWebhookSecret)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, f.gateway.retrieved)
}

func TestStripeWebhookHandler_MissingMetadataAcknowledged(t *testing.T) {
	f := newOrchestratorFixture(t)
	h := NewStripeWebhookHandler(testWebhookSecret, f.orch, nil, nil)

	payload := buildIntentEvent(t, "evt_5", "payment_intent.succeeded", "pi_1", 0)
	rec := sendWebhook(t, h, payload, testWebhookSecret)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, f.gateway.retrieved)
}

func TestStripeWebhookHandler_ProcessedLookupFailure(t *testing.T) {
	f := newOrchestratorFixture(t)
	h := NewStripeWebhookHandler(testWebhookSecret, f.orch, failingProcessedStore{}, nil)

	payload := buildIntentEvent(t, "evt_6", "payment_intent.succeeded", "pi_1", f.booking.ID)
	rec := sendWebhook(t, h, payload, testWebhookSecret)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStripeWebhookHandler_ProviderErrorRequestsRetry(t *testing.T) {
	f := newOrchestratorFixture(t)
	resp, err := f.orch.CreateIntent(context.Background(), f.booking.ID)
	require.NoError(t, err)
	f.gateway.getErr = newProviderError("retrieve intent", errors.New("timeout"))

	processed := NewInMemoryProcessedStore()
	h := NewStripeWebhookHandler(testWebhookSecret, f.orch, processed, nil)
	payload := buildIntentEvent(t, "evt_7", "payment_intent.succeeded", resp.PaymentIntentID, f.booking.ID)
	rec := sendWebhook(t, h, payload, testWebhookSecret)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	seen, _ := processed.AlreadyProcessed(context.Background(), "stripe", "evt_7")
	assert.False(t, seen)
}
