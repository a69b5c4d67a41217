package redis

import (
	"context"
	"fmt"
	"time"

	"settlement-gateway/config"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// keyPrefix namespaces every key this service writes.
	keyPrefix = "settlement:"

	clientName  = "settlement-gateway"
	pingTimeout = 2 * time.Second
)

// NewClient dials Redis for the idempotency cache, the reconciler lock and
// the rate limiter. Startup fails if the first PING does not answer.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		ClientName:   clientName,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	log.Info().
		Str("addr", cfg.Addr()).
		Int("db", cfg.DB).
		Str("prefix", keyPrefix).
		Msg("Redis ready")
	return rdb, nil
}

// HealthCheck reports Redis reachability on /health.
type HealthCheck struct {
	rdb *goredis.Client
}

func NewHealthCheck(rdb *goredis.Client) *HealthCheck {
	return &HealthCheck{rdb: rdb}
}

func (h *HealthCheck) Name() string { return "redis" }

func (h *HealthCheck) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return h.rdb.Ping(ctx).Err()
}
