package bootstrap

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/novellus/pilates-booking/internal/api/router"
	"github.com/novellus/pilates-booking/internal/bookings"
	appconfig "github.com/novellus/pilates-booking/internal/config"
	httpmiddleware "github.com/novellus/pilates-booking/internal/http/middleware"
	"github.com/novellus/pilates-booking/internal/notify"
	"github.com/novellus/pilates-booking/internal/observability/metrics"
	"github.com/novellus/pilates-booking/internal/payments"
	"github.com/novellus/pilates-booking/pkg/logging"
)

// App is the fully wired API process.
type App struct {
	Handler http.Handler
	Metrics *metrics.BookingMetrics

	pool    *pgxpool.Pool
	redis   *redis.Client
	limiter *httpmiddleware.RateLimiter
}

// Deps overrides external collaborators, mainly for tests.
type Deps struct {
	Gateway  payments.Gateway
	Email    notify.EmailSender
	SMS      notify.SMSSender
	Registry *prometheus.Registry
}

// Build connects storage, payment and notification backends and returns the
// HTTP handler serving the booking API.
func Build(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, deps Deps) (*App, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	m := metrics.NewBookingMetrics(reg)

	pool, err := ConnectPostgres(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	app := &App{Metrics: m, pool: pool}

	app.redis = BuildRedisClient(ctx, cfg, logger, true)
	repo := BuildBookingRepository(pool, logger)

	gateway := deps.Gateway
	if gateway == nil {
		gateway = payments.NewStripeGateway(cfg.StripeSecretKey, logger)
	}
	dispatcher := BuildDispatcher(ctx, cfg, deps, m, logger)
	velocity := payments.NewVelocityChecker(app.redis, payments.VelocityConfig{
		MaxIntentsPerBooking: cfg.IntentVelocityMax,
		Window:               cfg.IntentVelocityWindow,
	}, logger)

	offer := bookings.Offer{
		Name:        cfg.OfferName,
		AmountCents: int64(cfg.OfferAmountCents),
		Currency:    cfg.StripeCurrency,
	}
	svc := bookings.NewService(repo, offer, m, logger)
	orch := payments.NewOrchestrator(repo, gateway, dispatcher, velocity, m, logger)

	var webhook *payments.StripeWebhookHandler
	if pool != nil {
		webhook = payments.NewStripeWebhookHandler(cfg.StripeWebhookSecret, orch, payments.NewProcessedStore(pool), logger)
	} else {
		webhook = payments.NewStripeWebhookHandler(cfg.StripeWebhookSecret, orch, payments.NewInMemoryProcessedStore(), logger)
	}
	if cfg.StripeWebhookSecret == "" {
		logger.Warn("STRIPE_WEBHOOK_SECRET not set, webhook reconciliation disabled")
	}

	app.limiter = httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	app.Handler = router.New(&router.Config{
		Logger:             logger,
		Metrics:            m,
		BookingsHandler:    bookings.NewHandler(svc, logger),
		PaymentsHandler:    payments.NewHandler(orch, logger),
		StripeWebhook:      webhook,
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadyCheck:         app.ready,
		AdminJWTSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        app.limiter,
	})
	return app, nil
}

// BuildDispatcher wires email and SMS providers from configuration.
func BuildDispatcher(ctx context.Context, cfg *appconfig.Config, deps Deps, m *metrics.BookingMetrics, logger *logging.Logger) *notify.Dispatcher {
	email := deps.Email
	if email == nil {
		email = notify.NewEmailSender(ctx, notify.EmailProviderConfig{
			Provider:       cfg.EmailProvider,
			SendGridAPIKey: cfg.SendGridAPIKey,
			BrevoAPIKey:    cfg.BrevoAPIKey,
			FromEmail:      cfg.EmailFromAddress,
			FromName:       cfg.EmailFromName,
			AWS: notify.AWSOptions{
				Region:           cfg.AWSRegion,
				AccessKeyID:      cfg.AWSAccessKeyID,
				SecretAccessKey:  cfg.AWSSecretAccessKey,
				EndpointOverride: cfg.AWSEndpointOverride,
			},
		}, logger)
	}
	sms := deps.SMS
	if sms == nil {
		sms = BuildSMSSender(cfg, logger)
	}
	return notify.NewDispatcher(email, sms, notify.DispatcherConfig{
		StudioName: cfg.StudioName,
		OfferName:  cfg.OfferName,
		AdminEmail: cfg.AdminEmail,
	}, m, logger)
}

// BuildSMSSender returns Twilio when every credential is set and the stub
// sender otherwise.
func BuildSMSSender(cfg *appconfig.Config, logger *logging.Logger) notify.SMSSender {
	if !cfg.SMSEnabled() {
		logger.Warn("twilio credentials missing, using stub SMS sender")
		return notify.NewStubSMSSender(logger)
	}
	return notify.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)
}

func (a *App) ready(ctx context.Context) error {
	if a.pool != nil {
		if err := a.pool.Ping(ctx); err != nil {
			return err
		}
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Close releases connections and background goroutines.
func (a *App) Close() {
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
