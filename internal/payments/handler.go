package payments

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/novellus/pilates-booking/internal/bookings"
	httpmiddleware "github.com/novellus/pilates-booking/internal/http/middleware"
	"github.com/novellus/pilates-booking/internal/http/respond"
	"github.com/novellus/pilates-booking/pkg/logging"
)

// Handler serves the payment intent and confirmation endpoints.
type Handler struct {
	orchestrator *Orchestrator
	logger       *logging.Logger
}

type createIntentRequest struct {
	BookingID int64 `json:"bookingId"`
}

type confirmPaymentRequest struct {
	BookingID       int64  `json:"bookingId"`
	PaymentIntentID string `json:"paymentIntentId"`
}

type confirmPaymentResponse struct {
	Success bool              `json:"success"`
	Booking *bookings.Booking `json:"booking"`
}

func NewHandler(orchestrator *Orchestrator, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{orchestrator: orchestrator, logger: logger}
}

// CreatePaymentIntent handles POST /api/create-payment-intent.
func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := respond.DecodeJSON(w, r, &req); err != nil {
		respond.DecodeError(w, err)
		return
	}
	if req.BookingID <= 0 {
		respond.Error(w, http.StatusBadRequest, "Booking ID is required")
		return
	}

	resp, err := h.orchestrator.CreateIntent(r.Context(), req.BookingID)
	if err != nil {
		h.writeError(w, err, "Failed to create payment intent")
		return
	}
	respond.JSON(w, http.StatusOK, resp)
}

// ConfirmPayment handles POST /api/confirm-payment.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentRequest
	if err := respond.DecodeJSON(w, r, &req); err != nil {
		respond.DecodeError(w, err)
		return
	}
	req.PaymentIntentID = strings.TrimSpace(req.PaymentIntentID)
	if req.BookingID <= 0 || req.PaymentIntentID == "" {
		respond.Error(w, http.StatusBadRequest, "Booking ID and payment intent ID are required")
		return
	}

	b, err := h.orchestrator.ConfirmPayment(r.Context(), req.BookingID, req.PaymentIntentID)
	if err != nil {
		h.writeError(w, err, "Failed to confirm payment")
		return
	}
	respond.JSON(w, http.StatusOK, confirmPaymentResponse{Success: true, Booking: b})
}

// ResetVelocity handles POST /admin/bookings/{id}/velocity/reset.
func (h *Handler) ResetVelocity(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}
	if err := h.orchestrator.ResetVelocity(r.Context(), id); err != nil {
		h.writeError(w, err, "Failed to reset payment attempts")
		return
	}
	if claims, ok := httpmiddleware.AdminClaimsFromContext(r.Context()); ok {
		h.logger.Info("admin reset payment attempts", "booking_id", id, "admin", claims.Subject, "role", claims.Role)
	}
	respond.JSON(w, http.StatusOK, map[string]any{"bookingId": id, "reset": true})
}

func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	var failed *PaymentFailedError
	var provider *ProviderError
	var throttled *VelocityError
	if errors.As(err, &throttled) {
		retry := throttled.RetryAfter(time.Now())
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
	}
	switch {
	case errors.As(err, &failed):
		respond.Error(w, http.StatusBadRequest, failed.Error())
	case errors.Is(err, ErrBookingNotFound):
		respond.Error(w, http.StatusNotFound, "Booking not found")
	case errors.Is(err, ErrIntentNotFound):
		respond.Error(w, http.StatusNotFound, "Payment intent not found")
	case errors.Is(err, ErrIntentMismatch):
		respond.Error(w, http.StatusBadRequest, "Payment intent does not match booking")
	case errors.Is(err, ErrAlreadyFinalised):
		respond.Error(w, http.StatusConflict, "Booking payment already finalised")
	case errors.Is(err, ErrVelocityExceeded):
		respond.Error(w, http.StatusTooManyRequests, "Too many payment attempts, please try again later")
	case errors.As(err, &provider):
		h.logger.Error("payment provider error", "error", err)
		respond.Error(w, http.StatusBadGateway, "Payment provider unavailable")
	default:
		h.logger.Error("payment request failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, fallback)
	}
}
