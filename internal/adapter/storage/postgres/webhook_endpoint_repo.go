package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"settlement-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const endpointColumns = `id, merchant_id, url, events, secret_enc, enabled,
	timeout_ms, retry_attempts, retry_delays_ms,
	total_deliveries, successful_deliveries, failed_deliveries, last_failure_reason, last_delivery_at,
	created_at, updated_at`

// WebhookEndpointRepo implements ports.WebhookEndpointRepository.
type WebhookEndpointRepo struct {
	pool Pool
}

func NewWebhookEndpointRepo(pool Pool) *WebhookEndpointRepo {
	return &WebhookEndpointRepo{pool: pool}
}

func (r *WebhookEndpointRepo) Create(ctx context.Context, ep *domain.WebhookEndpoint) error {
	query := `INSERT INTO webhook_endpoints (id, merchant_id, url, events, secret_enc, enabled,
			timeout_ms, retry_attempts, retry_delays_ms, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		ep.ID, ep.MerchantID, ep.URL, eventNames(ep.Events), ep.SecretEnc, ep.Enabled,
		ep.Settings.Timeout.Milliseconds(), ep.Settings.RetryAttempts, millis(ep.Settings.RetryDelays),
		ep.CreatedAt, ep.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook endpoint: %w", err)
	}
	return nil
}

// GetByID returns (nil, nil) for an unknown endpoint.
func (r *WebhookEndpointRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookEndpoint, error) {
	ep, err := scanEndpoint(r.pool.QueryRow(ctx, `SELECT `+endpointColumns+` FROM webhook_endpoints WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get webhook endpoint: %w", err)
	}
	return ep, nil
}

func (r *WebhookEndpointRepo) ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]domain.WebhookEndpoint, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+endpointColumns+` FROM webhook_endpoints WHERE merchant_id = $1 ORDER BY created_at`, merchantID)
	if err != nil {
		return nil, fmt.Errorf("list webhook endpoints: %w", err)
	}
	defer rows.Close()

	var out []domain.WebhookEndpoint
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook endpoint: %w", err)
		}
		out = append(out, *ep)
	}
	return out, rows.Err()
}

// RecordDelivery folds one attempt into the endpoint's counters atomically.
func (r *WebhookEndpointRepo) RecordDelivery(ctx context.Context, id uuid.UUID, outcome domain.DeliveryOutcome) error {
	var query string
	args := []any{id, outcome.At.UTC()}
	if outcome.Success {
		query = `UPDATE webhook_endpoints SET
				total_deliveries = total_deliveries + 1,
				successful_deliveries = successful_deliveries + 1,
				last_delivery_at = $2
			WHERE id = $1`
	} else {
		query = `UPDATE webhook_endpoints SET
				total_deliveries = total_deliveries + 1,
				failed_deliveries = failed_deliveries + 1,
				last_failure_reason = $3,
				last_delivery_at = $2
			WHERE id = $1`
		args = append(args, outcome.FailureReason)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("record webhook delivery: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("webhook endpoint %s not found", id)
	}
	return nil
}

func (r *WebhookEndpointRepo) ResetStats(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE webhook_endpoints SET
			total_deliveries = 0, successful_deliveries = 0, failed_deliveries = 0,
			last_failure_reason = NULL, last_delivery_at = NULL, updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("reset webhook stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("webhook endpoint %s not found", id)
	}
	return nil
}

func scanEndpoint(row pgx.Row) (*domain.WebhookEndpoint, error) {
	var (
		ep        domain.WebhookEndpoint
		events    []string
		timeoutMS int64
		delaysMS  []int64
	)
	err := row.Scan(
		&ep.ID, &ep.MerchantID, &ep.URL, &events, &ep.SecretEnc, &ep.Enabled,
		&timeoutMS, &ep.Settings.RetryAttempts, &delaysMS,
		&ep.Stats.Total, &ep.Stats.Successful, &ep.Stats.Failed, &ep.Stats.LastFailureReason, &ep.Stats.LastDeliveryAt,
		&ep.CreatedAt, &ep.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		ep.Events = append(ep.Events, domain.EventType(e))
	}
	ep.Settings.Timeout = time.Duration(timeoutMS) * time.Millisecond
	for _, d := range delaysMS {
		ep.Settings.RetryDelays = append(ep.Settings.RetryDelays, time.Duration(d)*time.Millisecond)
	}
	return &ep, nil
}

func eventNames(events []domain.EventType) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = string(e)
	}
	return out
}

func millis(ds []time.Duration) []int64 {
	out := make([]int64, len(ds))
	for i, d := range ds {
		out[i] = d.Milliseconds()
	}
	return out
}
