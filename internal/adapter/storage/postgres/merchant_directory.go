package postgres

import (
	"context"
	"errors"
	"fmt"

	"settlement-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MerchantDirectory implements ports.MerchantDirectory over the merchants table.
type MerchantDirectory struct {
	pool Pool
}

func NewMerchantDirectory(pool Pool) *MerchantDirectory {
	return &MerchantDirectory{pool: pool}
}

// GetMerchant fetches a merchant by its UUID.
func (d *MerchantDirectory) GetMerchant(ctx context.Context, id uuid.UUID) (*domain.Merchant, error) {
	query := `SELECT id, settlement_address, accepted_currencies, active FROM merchants WHERE id = $1`

	m := &domain.Merchant{}
	err := d.pool.QueryRow(ctx, query, id).Scan(&m.ID, &m.SettlementAddress, &m.AcceptedCurrencies, &m.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get merchant by id: %w", err)
	}
	return m, nil
}
