package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"settlement-gateway/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const paymentColumns = `payment_id, merchant_id, merchant_address, unique_address, encrypted_private_key,
	currency, expected_amount, received_amount, status, description, metadata, expires_at,
	contract_registration_tx_id, confirmation_tx_id, observed_tx_id, settlement_tx_id,
	settlement_claim, settlement_claimed_at, error_message,
	created_at, updated_at, confirmed_at, settled_at`

// PaymentRepo implements ports.PaymentRepository. Status changes are single
// guarded UPDATE statements; a statement that matches no row reports
// domain.ErrStatusConflict.
type PaymentRepo struct {
	pool Pool
}

func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// Create inserts a new payment.
func (r *PaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	meta, err := marshalMetadata(p.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`

	_, err = r.pool.Exec(ctx, query,
		p.PaymentID, p.MerchantID, p.MerchantAddress, p.UniqueAddress, p.EncryptedPrivateKey,
		p.Currency, p.ExpectedAmount, p.ReceivedAmount, string(p.Status), p.Description, meta, p.ExpiresAt,
		p.ContractRegistrationTxID, p.ConfirmationTxID, p.ObservedTxID, p.SettlementTxID,
		p.SettlementClaim, p.SettlementClaimedAt, p.ErrorMessage,
		p.CreatedAt, p.UpdatedAt, p.ConfirmedAt, p.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// FindByPaymentID returns (nil, nil) when the payment does not exist.
func (r *PaymentRepo) FindByPaymentID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_id = $1`

	p, err := scanPayment(r.pool.QueryRow(ctx, query, paymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by id: %w", err)
	}
	return p, nil
}

// UpdateStatus is the compare-and-swap every lifecycle change goes through.
// Transaction references and timestamps are only written while still NULL,
// and received_amount only grows.
func (r *PaymentRepo) UpdateStatus(ctx context.Context, paymentID string, expected, next domain.PaymentStatus, upd domain.PaymentUpdate) error {
	query := `UPDATE payments SET
			status = $3,
			received_amount = GREATEST(received_amount, COALESCE($4::BIGINT, received_amount)),
			contract_registration_tx_id = COALESCE(contract_registration_tx_id, $5),
			confirmation_tx_id = COALESCE(confirmation_tx_id, $6),
			observed_tx_id = COALESCE(observed_tx_id, $7),
			settlement_tx_id = COALESCE(settlement_tx_id, $8),
			error_message = COALESCE($9, error_message),
			confirmed_at = COALESCE(confirmed_at, $10),
			settled_at = COALESCE(settled_at, $11),
			updated_at = NOW()
		WHERE payment_id = $1 AND status = $2`

	args := []any{
		paymentID, string(expected), string(next),
		upd.ReceivedAmount, upd.ContractRegistrationTxID, upd.ConfirmationTxID,
		upd.ObservedTxID, upd.SettlementTxID, upd.ErrorMessage,
		upd.ConfirmedAt, upd.SettledAt,
	}
	switch {
	case upd.ExpectClaim != "":
		query += ` AND settlement_claim = $12`
		args = append(args, upd.ExpectClaim)
	case upd.RequireUnclaimed:
		query += ` AND settlement_claim IS NULL`
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStatusConflict
	}
	return nil
}

// ClaimSettlement takes the settlement claim on a confirmed, unclaimed payment.
func (r *PaymentRepo) ClaimSettlement(ctx context.Context, paymentID, claimID string, now time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE payments SET settlement_claim = $2, settlement_claimed_at = $3, updated_at = NOW()
		WHERE payment_id = $1 AND status = 'confirmed' AND settlement_claim IS NULL`,
		paymentID, claimID, now.UTC(),
	)
	if err != nil {
		return fmt.Errorf("claim settlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStatusConflict
	}
	return nil
}

// ReleaseSettlementClaim drops the claim if claimID still holds it.
func (r *PaymentRepo) ReleaseSettlementClaim(ctx context.Context, paymentID, claimID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE payments SET settlement_claim = NULL, settlement_claimed_at = NULL, updated_at = NOW()
		WHERE payment_id = $1 AND settlement_claim = $2`,
		paymentID, claimID,
	)
	if err != nil {
		return fmt.Errorf("release settlement claim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStatusConflict
	}
	return nil
}

func (r *PaymentRepo) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.Payment, error) {
	return r.list(ctx, "list expired payments",
		`SELECT `+paymentColumns+` FROM payments
		WHERE status = 'pending' AND expires_at <= $1
		ORDER BY created_at LIMIT $2`, now.UTC(), limit)
}

func (r *PaymentRepo) ListUnregisteredPending(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Payment, error) {
	return r.list(ctx, "list unregistered payments",
		`SELECT `+paymentColumns+` FROM payments
		WHERE status = 'pending' AND contract_registration_tx_id IS NULL AND created_at < $1
		ORDER BY created_at LIMIT $2`, createdBefore.UTC(), limit)
}

func (r *PaymentRepo) ListStaleConfirmed(ctx context.Context, updatedBefore time.Time, limit int) ([]domain.Payment, error) {
	return r.list(ctx, "list stale confirmed payments",
		`SELECT `+paymentColumns+` FROM payments
		WHERE status = 'confirmed' AND updated_at < $1
		ORDER BY created_at LIMIT $2`, updatedBefore.UTC(), limit)
}

// ListByMerchant serves the merchant payment listing off idx_payments_merchant.
func (r *PaymentRepo) ListByMerchant(ctx context.Context, f domain.PaymentFilter) ([]domain.Payment, int64, error) {
	where := ` WHERE merchant_id = $1`
	args := []any{f.MerchantID}
	if f.Status != "" {
		where += ` AND status = $2`
		args = append(args, string(f.Status))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payments`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count merchant payments: %w", err)
	}
	if total == 0 || f.Offset >= int(total) {
		return nil, total, nil
	}

	n := len(args)
	query := `SELECT ` + paymentColumns + ` FROM payments` + where +
		fmt.Sprintf(` ORDER BY created_at DESC, payment_id DESC LIMIT $%d OFFSET $%d`, n+1, n+2)
	out, err := r.list(ctx, "list merchant payments", query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *PaymentRepo) list(ctx context.Context, op, query string, args ...any) ([]domain.Payment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		p      domain.Payment
		status string
		meta   []byte
	)
	err := row.Scan(
		&p.PaymentID, &p.MerchantID, &p.MerchantAddress, &p.UniqueAddress, &p.EncryptedPrivateKey,
		&p.Currency, &p.ExpectedAmount, &p.ReceivedAmount, &status, &p.Description, &meta, &p.ExpiresAt,
		&p.ContractRegistrationTxID, &p.ConfirmationTxID, &p.ObservedTxID, &p.SettlementTxID,
		&p.SettlementClaim, &p.SettlementClaimedAt, &p.ErrorMessage,
		&p.CreatedAt, &p.UpdatedAt, &p.ConfirmedAt, &p.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = domain.PaymentStatus(status)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &p.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &p, nil
}

func marshalMetadata(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return b, nil
}
