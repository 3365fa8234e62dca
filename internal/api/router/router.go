package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/novellus/pilates-booking/internal/bookings"
	httpmiddleware "github.com/novellus/pilates-booking/internal/http/middleware"
	"github.com/novellus/pilates-booking/internal/http/respond"
	"github.com/novellus/pilates-booking/internal/observability/metrics"
	"github.com/novellus/pilates-booking/internal/payments"
	"github.com/novellus/pilates-booking/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	Metrics         *metrics.BookingMetrics
	BookingsHandler *bookings.Handler
	PaymentsHandler *payments.Handler
	StripeWebhook   *payments.StripeWebhookHandler
	MetricsHandler  http.Handler

	// ReadyCheck backs /ready; nil means always ready.
	ReadyCheck func(ctx context.Context) error

	AdminJWTSecret     string
	CORSAllowedOrigins []string

	// RateLimiter guards /api/*. Owned by the caller so it can be stopped.
	RateLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger, cfg.Metrics))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", health)
	r.Get("/ready", ready(cfg.ReadyCheck))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if cfg.StripeWebhook != nil {
		r.Post("/webhooks/stripe", cfg.StripeWebhook.Handle)
	}

	r.Route("/api", func(api chi.Router) {
		if cfg.RateLimiter != nil {
			api.Use(cfg.RateLimiter.Middleware)
		}
		if bh := cfg.BookingsHandler; bh != nil {
			api.Get("/offer", bh.GetOffer)
			api.Post("/booking", bh.CreateBooking)
			api.Get("/booking/{id}", bh.GetBooking)
			api.Route("/validate", func(v chi.Router) {
				v.Post("/contact", bh.ValidateContact)
				v.Post("/time-preferences", bh.ValidateTimePreferences)
				v.Post("/medical", bh.ValidateMedical)
			})
		}
		if ph := cfg.PaymentsHandler; ph != nil {
			api.Post("/create-payment-intent", ph.CreatePaymentIntent)
			api.Post("/confirm-payment", ph.ConfirmPayment)
		}
	})

	if cfg.AdminJWTSecret != "" && cfg.BookingsHandler != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminJWTSecret))
			admin.Get("/bookings", cfg.BookingsHandler.ListBookings)
			admin.Get("/bookings/{id}", cfg.BookingsHandler.GetBooking)
			if ph := cfg.PaymentsHandler; ph != nil {
				admin.Post("/bookings/{id}/velocity/reset", ph.ResetVelocity)
			}
		})
	}

	return r
}

func health(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func ready(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				respond.Error(w, http.StatusServiceUnavailable, "not ready")
				return
			}
		}
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
