package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/novellus/pilates-booking/pkg/logging"
)

var paymentsTracer = otel.Tracer("pilates.internal.payments")

// metadataBookingID is the intent metadata key tying an intent to its booking.
const metadataBookingID = "bookingId"

// idempotencyNamespace scopes the per-booking idempotency keys sent to Stripe.
var idempotencyNamespace = uuid.MustParse("0f3c2a9e-5b7d-4c61-9a43-8e2d1f6b7a10")

// Intent is the provider-side view of a payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       int64
	Currency     string
	Metadata     map[string]string
}

// BookingID returns the booking id recorded in the intent metadata, or 0.
func (i *Intent) BookingID() int64 {
	if i == nil {
		return 0
	}
	id, err := strconv.ParseInt(i.Metadata[metadataBookingID], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// IntentParams describes the charge to create for a booking.
type IntentParams struct {
	BookingID      int64
	Amount         int64
	Currency       string
	Description    string
	ReceiptEmail   string
	IdempotencyKey string
}

// Gateway is the payment provider used by the orchestrator.
type Gateway interface {
	CreateIntent(ctx context.Context, params IntentParams) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
}

// IsSuccessStatus reports whether a provider status counts as paid.
func IsSuccessStatus(status string) bool {
	switch stripe.PaymentIntentStatus(status) {
	case stripe.PaymentIntentStatusSucceeded, stripe.PaymentIntentStatusRequiresCapture:
		return true
	default:
		return false
	}
}

// IsTerminalFailure reports whether an intent can no longer be paid.
func IsTerminalFailure(status string) bool {
	return stripe.PaymentIntentStatus(status) == stripe.PaymentIntentStatusCanceled
}

// IdempotencyKey derives a stable key for one booking's intent creation.
func IdempotencyKey(bookingID int64, salt string) string {
	return uuid.NewSHA1(idempotencyNamespace, []byte(fmt.Sprintf("%d:%s", bookingID, salt))).String()
}

// paymentIntentAPI is the subset of the stripe-go client used here.
type paymentIntentAPI interface {
	Create(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error)
	Retrieve(ctx context.Context, id string, params *stripe.PaymentIntentRetrieveParams) (*stripe.PaymentIntent, error)
}

// StripeGateway creates and retrieves Stripe PaymentIntents.
type StripeGateway struct {
	intents paymentIntentAPI
	logger  *logging.Logger
}

// NewStripeGateway builds a gateway backed by the Stripe API.
func NewStripeGateway(secretKey string, logger *logging.Logger) *StripeGateway {
	sc := stripe.NewClient(secretKey)
	return newStripeGatewayWithAPI(sc.V1PaymentIntents, logger)
}

func newStripeGatewayWithAPI(api paymentIntentAPI, logger *logging.Logger) *StripeGateway {
	if logger == nil {
		logger = logging.Default()
	}
	return &StripeGateway{intents: api, logger: logger}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, p IntentParams) (*Intent, error) {
	ctx, span := paymentsTracer.Start(ctx, "stripe.create_payment_intent", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.Int64("pilates.booking_id", p.BookingID),
		attribute.Int64("pilates.amount_cents", p.Amount),
	)

	if p.Amount <= 0 {
		return nil, fmt.Errorf("payments: amount must be positive, got %d", p.Amount)
	}
	currency := strings.ToLower(strings.TrimSpace(p.Currency))
	if currency == "" {
		currency = string(stripe.CurrencyAUD)
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(p.Amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if p.Description != "" {
		params.Description = stripe.String(p.Description)
	}
	if p.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(p.ReceiptEmail)
	}
	params.AddMetadata(metadataBookingID, strconv.FormatInt(p.BookingID, 10))
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	pi, err := g.intents.Create(ctx, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stripe create failed")
		return nil, newProviderError("create intent", err)
	}
	g.logger.Info("stripe payment intent created", "booking_id", p.BookingID, "intent_id", pi.ID, "amount_cents", p.Amount)
	return intentFromStripe(pi), nil
}

func (g *StripeGateway) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	ctx, span := paymentsTracer.Start(ctx, "stripe.retrieve_payment_intent", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("pilates.intent_id", id))

	if strings.TrimSpace(id) == "" {
		return nil, ErrIntentNotFound
	}
	pi, err := g.intents.Retrieve(ctx, id, &stripe.PaymentIntentRetrieveParams{})
	if err != nil {
		span.RecordError(err)
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return nil, fmt.Errorf("payments: retrieve %s: %w", id, ErrIntentNotFound)
		}
		return nil, newProviderError("retrieve intent", err)
	}
	span.SetAttributes(attribute.String("pilates.intent_status", string(pi.Status)))
	return intentFromStripe(pi), nil
}

func intentFromStripe(pi *stripe.PaymentIntent) *Intent {
	if pi == nil {
		return nil
	}
	md := make(map[string]string, len(pi.Metadata))
	for k, v := range pi.Metadata {
		md[k] = v
	}
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     md,
	}
}
