package payments

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/novellus/pilates-booking/internal/http/respond"
	"github.com/novellus/pilates-booking/pkg/logging"
)

// StripeWebhookHandler settles pending bookings from payment_intent
// succeeded and canceled events.
type StripeWebhookHandler struct {
	webhookSecret string
	orchestrator  *Orchestrator
	processed     processedTracker
	logger        *logging.Logger
}

// NewStripeWebhookHandler creates a new handler for Stripe webhooks.
func NewStripeWebhookHandler(webhookSecret string, orchestrator *Orchestrator, processed processedTracker, logger *logging.Logger) *StripeWebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if processed == nil {
		processed = NewInMemoryProcessedStore()
	}
	return &StripeWebhookHandler{
		webhookSecret: webhookSecret,
		orchestrator:  orchestrator,
		processed:     processed,
		logger:        logger,
	}
}

// Handle processes incoming Stripe webhook events.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.webhookSecret == "" {
		http.Error(w, "webhook not configured", http.StatusServiceUnavailable)
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, respond.MaxBodyBytes))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	evt, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), h.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		h.logger.Warn("stripe webhook signature rejected", "error", err)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if evt.ID == "" {
		http.Error(w, "missing event id", http.StatusBadRequest)
		return
	}

	// payment_intent.payment_failed is a declined attempt the customer can
	// retry on the same intent, so it never settles a booking.
	if evt.Type != stripe.EventTypePaymentIntentSucceeded && evt.Type != stripe.EventTypePaymentIntentCanceled {
		w.WriteHeader(http.StatusOK)
		return
	}

	if processed, err := h.processed.AlreadyProcessed(r.Context(), "stripe", evt.ID); err != nil {
		h.logger.Error("processed lookup failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	} else if processed {
		w.WriteHeader(http.StatusOK)
		return
	}

	var pi stripe.PaymentIntent
	if evt.Data == nil || json.Unmarshal(evt.Data.Raw, &pi) != nil {
		h.logger.Error("failed to decode payment intent", "event_id", evt.ID)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	bookingID := intentFromStripe(&pi).BookingID()
	if bookingID <= 0 {
		h.logger.Warn("stripe webhook missing booking metadata", "event_id", evt.ID, "intent_id", pi.ID)
		// Acknowledge to prevent retries but can't progress workflow
		w.WriteHeader(http.StatusOK)
		return
	}

	settled, err := h.orchestrator.Reconcile(r.Context(), bookingID, pi.ID)
	switch {
	case errors.Is(err, ErrBookingNotFound), errors.Is(err, ErrIntentMismatch), errors.Is(err, ErrAlreadyFinalised):
		h.logger.Warn("stripe webhook ignored", "event_id", evt.ID, "booking_id", bookingID, "error", err)
	case err != nil:
		h.logger.Error("stripe webhook reconcile failed", "event_id", evt.ID, "booking_id", bookingID, "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	if _, err := h.processed.MarkProcessed(r.Context(), "stripe", evt.ID); err != nil {
		h.logger.Error("failed to mark stripe event processed", "event_id", evt.ID, "error", err)
	}
	h.logger.Info("stripe webhook handled",
		"event_id", evt.ID,
		"type", string(evt.Type),
		"booking_id", bookingID,
		"settled", settled,
	)
	w.WriteHeader(http.StatusOK)
}
