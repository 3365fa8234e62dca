package bookings

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/novellus/pilates-booking/internal/observability/metrics"
	"github.com/novellus/pilates-booking/internal/schema"
	"github.com/novellus/pilates-booking/pkg/logging"
)

var bookingsTracer = otel.Tracer("pilates.internal.bookings")

// Offer is the priced session a booking pays for.
type Offer struct {
	Name        string `json:"name"`
	AmountCents int64  `json:"amountCents"`
	Currency    string `json:"currency"`
}

// Service validates and persists booking submissions.
type Service struct {
	repo    Repository
	offer   Offer
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
}

// NewService constructs a bookings service.
func NewService(repo Repository, offer Offer, m *metrics.BookingMetrics, logger *logging.Logger) *Service {
	if repo == nil {
		panic("bookings: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if offer.Currency == "" {
		offer.Currency = "aud"
	}
	return &Service{repo: repo, offer: offer, metrics: m, logger: logger}
}

// Offer returns the configured session price.
func (s *Service) Offer() Offer {
	return s.offer
}

// Create re-validates the submission server-side and stores it as pending.
func (s *Service) Create(ctx context.Context, sub schema.BookingSubmission) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.create")
	defer span.End()

	sub.Normalize()
	if err := schema.ValidateSubmission(sub); err != nil {
		s.metrics.ObserveBookingCreated("invalid")
		return nil, err
	}

	b, err := s.repo.Create(ctx, NewBooking{
		Submission:  sub,
		TotalAmount: s.offer.AmountCents,
		Currency:    s.offer.Currency,
	})
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveBookingCreated("error")
		s.logger.Error("booking insert failed", "error", err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int64("pilates.booking_id", b.ID),
		attribute.Bool("pilates.needs_medical_clearance", b.NeedsMedicalClearance()),
	)
	s.metrics.ObserveBookingCreated("created")
	s.logger.Info("booking created",
		"booking_id", b.ID,
		"class_type", b.ClassType,
		"time_preferences", len(b.TimePreferences.TimePreferences),
		"needs_medical_clearance", b.NeedsMedicalClearance(),
	)
	return b, nil
}

// Get loads one booking.
func (s *Service) Get(ctx context.Context, id int64) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.get")
	defer span.End()
	span.SetAttributes(attribute.Int64("pilates.booking_id", id))

	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return b, nil
}

// List returns bookings for the admin view.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.list")
	defer span.End()

	out, err := s.repo.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}
