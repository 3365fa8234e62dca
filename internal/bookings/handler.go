package bookings

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	httpmiddleware "github.com/novellus/pilates-booking/internal/http/middleware"
	"github.com/novellus/pilates-booking/internal/http/respond"
	"github.com/novellus/pilates-booking/internal/schema"
	"github.com/novellus/pilates-booking/pkg/logging"
)

// Handler handles HTTP requests for bookings and step validation.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a new bookings handler
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// CreateBooking handles POST /api/booking.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var sub schema.BookingSubmission
	if err := respond.DecodeJSON(w, r, &sub); err != nil {
		h.logger.Warn("failed to decode booking", "error", err)
		respond.DecodeError(w, err)
		return
	}

	b, err := h.service.Create(r.Context(), sub)
	if err != nil {
		if ve, ok := schema.AsValidationError(err); ok {
			respond.Error(w, http.StatusBadRequest, "Invalid booking data", ve.Errors...)
			return
		}
		respond.Error(w, http.StatusInternalServerError, "Failed to create booking")
		return
	}
	respond.JSON(w, http.StatusOK, b)
}

// GetOffer handles GET /api/offer.
func (h *Handler) GetOffer(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, h.service.Offer())
}

// GetBooking handles GET /api/booking/{id} and GET /admin/bookings/{id}.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	b, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "Booking not found")
			return
		}
		h.logger.Error("failed to load booking", "booking_id", id, "error", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to fetch booking")
		return
	}
	if claims, ok := httpmiddleware.AdminClaimsFromContext(r.Context()); ok {
		h.logger.Info("admin viewed booking", "booking_id", id, "admin", claims.Subject, "role", claims.Role)
	}
	respond.JSON(w, http.StatusOK, b)
}

// ListBookings handles GET /admin/bookings.
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Limit: defaultListLimit}
	q := r.URL.Query()
	if limitStr := q.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= maxListLimit {
			filter.Limit = limit
		}
	}
	if offsetStr := q.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}
	if status := PaymentStatus(q.Get("status")); status != "" {
		if !status.Valid() {
			respond.Error(w, http.StatusBadRequest, "Invalid status filter")
			return
		}
		filter.Status = status
	}

	out, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list bookings", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to list bookings")
		return
	}
	if claims, ok := httpmiddleware.AdminClaimsFromContext(r.Context()); ok {
		h.logger.Info("admin listed bookings", "admin", claims.Subject, "role", claims.Role, "status", filter.Status, "count", len(out))
	}
	respond.JSON(w, http.StatusOK, ListResponse{
		Bookings: out,
		Count:    len(out),
		Offset:   filter.Offset,
		Limit:    filter.Limit,
	})
}

type validateResponse struct {
	Valid  bool                `json:"valid"`
	Data   any                 `json:"data,omitempty"`
	Errors []schema.FieldError `json:"errors,omitempty"`
}

// ValidateContact handles POST /api/validate/contact.
func (h *Handler) ValidateContact(w http.ResponseWriter, r *http.Request) {
	var c schema.ContactInfo
	if !decodeStep(w, r, &c) {
		return
	}
	c.Normalize()
	writeValidation(w, c, schema.ValidateContact(c))
}

// ValidateTimePreferences handles POST /api/validate/time-preferences.
func (h *Handler) ValidateTimePreferences(w http.ResponseWriter, r *http.Request) {
	var t schema.TimePreferences
	if !decodeStep(w, r, &t) {
		return
	}
	t.Normalize()
	writeValidation(w, t, schema.ValidateTimePreferences(t))
}

// ValidateMedical handles POST /api/validate/medical.
func (h *Handler) ValidateMedical(w http.ResponseWriter, r *http.Request) {
	var m schema.MedicalDeclaration
	if !decodeStep(w, r, &m) {
		return
	}
	m.Normalize()
	writeValidation(w, m, schema.ValidateMedical(m))
}

func decodeStep(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := respond.DecodeJSON(w, r, dst); err != nil {
		if respond.BodyTooLarge(err) {
			respond.DecodeError(w, err)
			return false
		}
		respond.JSON(w, http.StatusBadRequest, validateResponse{
			Valid:  false,
			Errors: []schema.FieldError{{Field: "body", Message: "Invalid request body"}},
		})
		return false
	}
	return true
}

func writeValidation(w http.ResponseWriter, data any, err error) {
	if err == nil {
		respond.JSON(w, http.StatusOK, validateResponse{Valid: true, Data: data})
		return
	}
	resp := validateResponse{Valid: false}
	if ve, ok := schema.AsValidationError(err); ok {
		resp.Errors = ve.Errors
	} else {
		resp.Errors = []schema.FieldError{{Field: "body", Message: err.Error()}}
	}
	respond.JSON(w, http.StatusBadRequest, resp)
}
