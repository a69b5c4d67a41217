// Package postgres holds the pgx-backed stores: payments, webhook endpoints
// and the merchant directory.
package postgres

import (
	"context"
	"fmt"
	"time"

	"settlement-gateway/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const (
	applicationName = "settlement-gateway"
	pingTimeout     = 3 * time.Second
)

// NewPool opens the pgx pool behind the lifecycle store. Zero-valued pool
// limits in cfg keep the pgxpool defaults.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	pcfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	pcfg.HealthCheckPeriod = 30 * time.Second

	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 && cfg.MinConns <= pcfg.MaxConns {
		pcfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	log.Info().
		Str("db", fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.DBName)).
		Int32("max_conns", pcfg.MaxConns).
		Int32("min_conns", pcfg.MinConns).
		Msg("PostgreSQL ready")
	return pool, nil
}

// HealthCheck reports database reachability on /health.
type HealthCheck struct {
	db Pool
}

func NewHealthCheck(db Pool) *HealthCheck {
	return &HealthCheck{db: db}
}

func (h *HealthCheck) Name() string { return "postgresql" }

func (h *HealthCheck) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if _, err := h.db.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("postgres health: %w", err)
	}
	return nil
}
