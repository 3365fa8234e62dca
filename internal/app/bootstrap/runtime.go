package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/novellus/pilates-booking/internal/bookings"
	appconfig "github.com/novellus/pilates-booking/internal/config"
	"github.com/novellus/pilates-booking/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, payment velocity checks disabled", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// ConnectPostgres opens a pgx pool, or returns nil when DATABASE_URL is unset.
func ConnectPostgres(ctx context.Context, databaseURL string, logger *logging.Logger) (*pgxpool.Pool, error) {
	databaseURL = strings.TrimSpace(databaseURL)
	if databaseURL == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("connected to postgres")
	return pool, nil
}

// BuildBookingRepository prefers Postgres and falls back to memory for local runs.
func BuildBookingRepository(pool *pgxpool.Pool, logger *logging.Logger) bookings.Repository {
	if pool != nil {
		return bookings.NewPostgresRepository(pool)
	}
	if logger == nil {
		logger = logging.Default()
	}
	logger.Warn("DATABASE_URL not set, bookings are kept in memory")
	return bookings.NewInMemoryRepository()
}
