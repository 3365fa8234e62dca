package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/novellus/pilates-booking/internal/bookings"
	"github.com/novellus/pilates-booking/internal/notify"
	"github.com/novellus/pilates-booking/internal/observability/metrics"
	"github.com/novellus/pilates-booking/pkg/logging"
)

// Notifier sends the post-payment notifications for a booking.
type Notifier interface {
	NotifyPaymentConfirmed(ctx context.Context, b *bookings.Booking) []notify.Result
}

type intentLimiter interface {
	CheckIntentVelocity(ctx context.Context, bookingID int64) (*VelocityResult, error)
	ResetIntentVelocity(ctx context.Context, bookingID int64) error
}

// IntentResponse is handed to the payment widget.
type IntentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// Orchestrator drives a booking from NoIntent through IntentCreated to
// Confirmed or Failed.
type Orchestrator struct {
	repo     bookings.Repository
	gateway  Gateway
	notifier Notifier
	velocity intentLimiter
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
}

// NewOrchestrator wires the orchestrator. velocity may be nil.
func NewOrchestrator(repo bookings.Repository, gateway Gateway, notifier Notifier, velocity *VelocityChecker, m *metrics.BookingMetrics, logger *logging.Logger) *Orchestrator {
	if repo == nil {
		panic("payments: booking repository required")
	}
	if gateway == nil {
		panic("payments: gateway required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	o := &Orchestrator{
		repo:     repo,
		gateway:  gateway,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
	if velocity != nil {
		o.velocity = velocity
	}
	return o
}

// CreateIntent asks the provider for an intent covering the booking's stored
// amount and records the intent id on the booking.
func (o *Orchestrator) CreateIntent(ctx context.Context, bookingID int64) (*IntentResponse, error) {
	ctx, span := paymentsTracer.Start(ctx, "payments.create_intent")
	defer span.End()
	span.SetAttributes(attribute.Int64("pilates.booking_id", bookingID))

	b, err := o.loadBooking(ctx, bookingID)
	if err != nil {
		o.metrics.ObserveIntentCreated("rejected")
		return nil, err
	}
	if b.PaymentStatus.Terminal() {
		o.metrics.ObserveIntentCreated("rejected")
		return nil, fmt.Errorf("payments: create intent for %s booking %d: %w", b.PaymentStatus, b.ID, ErrAlreadyFinalised)
	}

	if o.velocity != nil {
		res, err := o.velocity.CheckIntentVelocity(ctx, b.ID)
		if err == nil && res != nil && !res.Allowed {
			o.metrics.ObserveIntentCreated("throttled")
			return nil, &VelocityError{BookingID: b.ID, Reason: res.Message, ResetAt: res.WindowExpiry}
		}
	}

	intent, err := o.gateway.CreateIntent(ctx, IntentParams{
		BookingID:      b.ID,
		Amount:         b.TotalAmount,
		Currency:       b.Currency,
		Description:    fmt.Sprintf("Pilates booking #%d", b.ID),
		ReceiptEmail:   b.Email,
		IdempotencyKey: IdempotencyKey(b.ID, strconv.FormatInt(b.CreatedAt.UnixNano(), 10)),
	})
	if err != nil {
		span.RecordError(err)
		o.metrics.ObserveIntentCreated("failed")
		o.logger.Error("payment intent creation failed", "booking_id", b.ID, "error", err)
		return nil, err
	}

	if _, err := o.repo.AttachPaymentIntent(ctx, b.ID, intent.ID); err != nil {
		o.metrics.ObserveIntentCreated("failed")
		if errors.Is(err, bookings.ErrInvalidTransition) {
			return nil, fmt.Errorf("payments: attach intent to booking %d: %w", b.ID, ErrAlreadyFinalised)
		}
		if errors.Is(err, bookings.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("payments: attach intent: %w", err)
	}

	o.metrics.ObserveIntentCreated("created")
	o.logger.Info("payment intent ready", "booking_id", b.ID, "intent_id", intent.ID)
	return &IntentResponse{ClientSecret: intent.ClientSecret, PaymentIntentID: intent.ID}, nil
}

// ConfirmPayment re-fetches the intent from the provider and settles the
// booking. A successful status completes the booking and sends
// notifications; any other status fails it and returns *PaymentFailedError.
func (o *Orchestrator) ConfirmPayment(ctx context.Context, bookingID int64, intentID string) (*bookings.Booking, error) {
	ctx, span := paymentsTracer.Start(ctx, "payments.confirm_payment")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("pilates.booking_id", bookingID),
		attribute.String("pilates.intent_id", intentID),
	)

	b, err := o.loadBooking(ctx, bookingID)
	if err != nil {
		o.metrics.ObservePaymentConfirmed("rejected")
		return nil, err
	}

	intent, err := o.gateway.RetrieveIntent(ctx, intentID)
	if err != nil {
		span.RecordError(err)
		o.metrics.ObservePaymentConfirmed("error")
		o.logger.Error("payment intent lookup failed", "booking_id", bookingID, "intent_id", intentID, "error", err)
		return nil, err
	}
	if intent.BookingID() != b.ID {
		o.metrics.ObservePaymentConfirmed("rejected")
		o.logger.Warn("payment intent booking mismatch",
			"booking_id", b.ID,
			"intent_id", intent.ID,
			"intent_booking_id", intent.Metadata[metadataBookingID],
		)
		return nil, fmt.Errorf("payments: intent %s for booking %d: %w", intent.ID, b.ID, ErrIntentMismatch)
	}
	span.SetAttributes(attribute.String("pilates.intent_status", intent.Status))

	if !IsSuccessStatus(intent.Status) {
		if _, err := o.settle(ctx, b, intent.ID, bookings.StatusFailed); err != nil {
			o.metrics.ObservePaymentConfirmed("error")
			return nil, err
		}
		o.metrics.ObservePaymentConfirmed("failed")
		o.logger.Warn("payment not successful", "booking_id", b.ID, "intent_id", intent.ID, "status", intent.Status)
		return nil, &PaymentFailedError{Status: intent.Status}
	}

	alreadyCompleted := b.PaymentStatus == bookings.StatusCompleted
	updated, err := o.settle(ctx, b, intent.ID, bookings.StatusCompleted)
	if err != nil {
		o.metrics.ObservePaymentConfirmed("error")
		return nil, err
	}
	o.metrics.ObservePaymentConfirmed("completed")
	o.logger.Info("payment confirmed", "booking_id", updated.ID, "intent_id", intent.ID, "status", intent.Status)

	if !alreadyCompleted {
		o.notify(ctx, updated)
	}
	return updated, nil
}

// Reconcile settles a pending booking from a provider event. Only a
// successful or canceled intent moves the booking; a declined attempt leaves
// it pending because the customer may retry on the same intent.
func (o *Orchestrator) Reconcile(ctx context.Context, bookingID int64, intentID string) (bool, error) {
	b, err := o.loadBooking(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if b.PaymentStatus != bookings.StatusPending {
		return false, nil
	}

	intent, err := o.gateway.RetrieveIntent(ctx, intentID)
	if err != nil {
		return false, err
	}
	if intent.BookingID() != b.ID {
		return false, fmt.Errorf("payments: intent %s for booking %d: %w", intent.ID, b.ID, ErrIntentMismatch)
	}
	if !IsSuccessStatus(intent.Status) && !IsTerminalFailure(intent.Status) {
		o.logger.Info("payment attempt not final, booking left pending",
			"booking_id", b.ID,
			"intent_id", intent.ID,
			"status", intent.Status,
		)
		return false, nil
	}

	_, err = o.ConfirmPayment(ctx, bookingID, intentID)
	var failed *PaymentFailedError
	if errors.As(err, &failed) {
		return true, nil
	}
	return err == nil, err
}

// ResetVelocity clears the intent counter of an existing booking so the
// customer can try paying again before the window ends.
func (o *Orchestrator) ResetVelocity(ctx context.Context, bookingID int64) error {
	if _, err := o.loadBooking(ctx, bookingID); err != nil {
		return err
	}
	if o.velocity == nil {
		return nil
	}
	if err := o.velocity.ResetIntentVelocity(ctx, bookingID); err != nil {
		return fmt.Errorf("payments: reset velocity for booking %d: %w", bookingID, err)
	}
	o.logger.Info("intent velocity reset", "booking_id", bookingID)
	return nil
}

func (o *Orchestrator) loadBooking(ctx context.Context, id int64) (*bookings.Booking, error) {
	b, err := o.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookings.ErrNotFound) {
			return nil, fmt.Errorf("payments: booking %d: %w", id, ErrBookingNotFound)
		}
		return nil, fmt.Errorf("payments: load booking: %w", err)
	}
	return b, nil
}

func (o *Orchestrator) settle(ctx context.Context, b *bookings.Booking, intentID string, status bookings.PaymentStatus) (*bookings.Booking, error) {
	updated, err := o.repo.UpdatePaymentStatus(ctx, b.ID, intentID, status)
	if err != nil {
		switch {
		case errors.Is(err, bookings.ErrInvalidTransition):
			return nil, fmt.Errorf("payments: %s booking %d: %w", b.PaymentStatus, b.ID, ErrAlreadyFinalised)
		case errors.Is(err, bookings.ErrNotFound):
			return nil, fmt.Errorf("payments: booking %d: %w", b.ID, ErrBookingNotFound)
		}
		o.logger.Error("payment status update failed", "booking_id", b.ID, "status", status, "error", err)
		return nil, fmt.Errorf("payments: update status: %w", err)
	}
	return updated, nil
}

func (o *Orchestrator) notify(ctx context.Context, b *bookings.Booking) {
	if o.notifier == nil {
		return
	}
	failed := 0
	for _, res := range o.notifier.NotifyPaymentConfirmed(ctx, b) {
		if !res.OK && !res.Skipped {
			failed++
		}
	}
	if failed > 0 {
		o.logger.Warn("some booking notifications failed", "booking_id", b.ID, "failed", failed)
	}
}
