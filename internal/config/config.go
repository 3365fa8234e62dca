package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Errors returned by Validate. Each one leaves the payment path unusable.
var (
	ErrMissingStripeKey   = errors.New("config: STRIPE_SECRET_KEY is required")
	ErrInvalidOfferAmount = errors.New("config: OFFER_AMOUNT_CENTS must be positive")
	ErrMissingCurrency    = errors.New("config: STRIPE_CURRENCY is required")
)

// Config holds application configuration
type Config struct {
	Port        string
	Env         string
	LogLevel    string
	LogFormat   string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	StripeCurrency      string

	// Offer shown in the booking form. Amount is never taken from the client.
	OfferAmountCents int
	OfferName        string
	StudioName       string

	// Email
	EmailProvider    string
	SendGridAPIKey   string
	BrevoAPIKey      string
	EmailFromAddress string
	EmailFromName    string
	AdminEmail       string

	// AWS (SES email provider)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Twilio SMS
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	AdminJWTSecret     string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	IntentVelocityMax    int
	IntentVelocityWindow time.Duration

	// Tracing
	OTLPEndpoint string
	OTLPInsecure bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		StripeSecretKey:     strings.TrimSpace(getEnv("STRIPE_SECRET_KEY", "")),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeCurrency:      strings.ToLower(strings.TrimSpace(getEnv("STRIPE_CURRENCY", "aud"))),

		OfferAmountCents: getEnvAsInt("OFFER_AMOUNT_CENTS", 3000),
		OfferName:        getEnv("OFFER_NAME", "Introduction Pilates Session"),
		StudioName:       getEnv("STUDIO_NAME", "Novellus Wellness"),

		EmailProvider:    strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "auto"))),
		SendGridAPIKey:   getEnv("SENDGRID_API_KEY", ""),
		BrevoAPIKey:      getEnv("BREVO_API_KEY", ""),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Novellus Wellness"),
		AdminEmail:       getEnv("ADMIN_EMAIL", ""),

		AWSRegion:           getEnv("AWS_REGION", "ap-southeast-2"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_PHONE_NUMBER", ""),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 2),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),

		IntentVelocityMax:    getEnvAsInt("INTENT_VELOCITY_MAX", 5),
		IntentVelocityWindow: getEnvAsDuration("INTENT_VELOCITY_WINDOW", time.Hour),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure: getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", true),
	}
}

// Validate reports configuration that must stop the process at startup.
func (c *Config) Validate() error {
	if c.StripeSecretKey == "" {
		return ErrMissingStripeKey
	}
	if c.OfferAmountCents <= 0 {
		return ErrInvalidOfferAmount
	}
	if c.StripeCurrency == "" {
		return ErrMissingCurrency
	}
	return nil
}

// SMSEnabled reports whether all Twilio credentials are present.
func (c *Config) SMSEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
