package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/novellus/pilates-booking/pkg/logging"
)

// VelocityChecker caps how many payment intents one booking may request.
type VelocityChecker struct {
	redis  *redis.Client
	logger *logging.Logger
	config VelocityConfig
}

// VelocityConfig contains velocity check configuration.
type VelocityConfig struct {
	// Max intent creations per booking per window
	MaxIntentsPerBooking int
	Window               time.Duration
}

// DefaultVelocityConfig returns default velocity limits.
func DefaultVelocityConfig() VelocityConfig {
	return VelocityConfig{
		MaxIntentsPerBooking: 5,
		Window:               time.Hour,
	}
}

// VelocityResult contains the result of a velocity check.
type VelocityResult struct {
	Allowed      bool
	CurrentCount int
	MaxAllowed   int
	WindowExpiry time.Time
	Message      string
}

// NewVelocityChecker creates a new velocity checker. A nil client disables checks.
func NewVelocityChecker(redisClient *redis.Client, config VelocityConfig, logger *logging.Logger) *VelocityChecker {
	if logger == nil {
		logger = logging.Default()
	}
	defaults := DefaultVelocityConfig()
	if config.MaxIntentsPerBooking <= 0 {
		config.MaxIntentsPerBooking = defaults.MaxIntentsPerBooking
	}
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	return &VelocityChecker{
		redis:  redisClient,
		logger: logger,
		config: config,
	}
}

// CheckIntentVelocity counts an intent request for the booking and reports
// whether it is within the window limit.
func (v *VelocityChecker) CheckIntentVelocity(ctx context.Context, bookingID int64) (*VelocityResult, error) {
	if v == nil || v.redis == nil {
		return &VelocityResult{Allowed: true}, nil
	}
	ctx, span := paymentsTracer.Start(ctx, "velocity.check_intent")
	defer span.End()
	span.SetAttributes(attribute.Int64("pilates.booking_id", bookingID))

	key := intentVelocityKey(bookingID)
	count, expiry, err := v.incrementAndGet(ctx, key, v.config.Window)
	if err != nil {
		v.logger.Error("velocity check failed", "error", err, "key", key)
		// Fail open - allow the intent if Redis is down
		return &VelocityResult{Allowed: true, Message: "velocity check unavailable"}, nil
	}

	result := &VelocityResult{
		Allowed:      count <= v.config.MaxIntentsPerBooking,
		CurrentCount: count,
		MaxAllowed:   v.config.MaxIntentsPerBooking,
		WindowExpiry: expiry,
	}
	if !result.Allowed {
		result.Message = fmt.Sprintf("exceeded %d payment attempts in %s", v.config.MaxIntentsPerBooking, v.config.Window)
		v.logger.Warn("intent velocity exceeded",
			"booking_id", bookingID,
			"count", count,
			"max", v.config.MaxIntentsPerBooking,
		)
		span.SetAttributes(attribute.Bool("velocity.exceeded", true))
	}
	return result, nil
}

// ResetIntentVelocity clears the counter for a booking.
func (v *VelocityChecker) ResetIntentVelocity(ctx context.Context, bookingID int64) error {
	if v == nil || v.redis == nil {
		return nil
	}
	return v.redis.Del(ctx, intentVelocityKey(bookingID)).Err()
}

// incrementAndGet counts one attempt and returns the new value with the
// window's expiry. A counter without a TTL gets one, including a key left
// behind by an earlier failed EXPIRE.
func (v *VelocityChecker) incrementAndGet(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	pipe := v.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttlCmd := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, err
	}

	ttl := ttlCmd.Val()
	if ttl < 0 {
		if err := v.redis.Expire(ctx, key, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("payments: set velocity window: %w", err)
		}
		ttl = window
	}
	return int(incr.Val()), time.Now().Add(ttl), nil
}

func intentVelocityKey(bookingID int64) string {
	return fmt.Sprintf("velocity:intent:%d", bookingID)
}
