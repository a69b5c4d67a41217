package memory

import (
	"context"
	"slices"
	"sync"

	"settlement-gateway/internal/core/domain"

	"github.com/google/uuid"
)

// MerchantDirectory implements ports.MerchantDirectory over a fixed set of
// merchants, typically seeded at boot in development.
type MerchantDirectory struct {
	mu        sync.RWMutex
	merchants map[uuid.UUID]domain.Merchant
}

func NewMerchantDirectory(merchants ...domain.Merchant) *MerchantDirectory {
	d := &MerchantDirectory{merchants: make(map[uuid.UUID]domain.Merchant)}
	for _, m := range merchants {
		d.Put(m)
	}
	return d
}

// Put adds or replaces a merchant.
func (d *MerchantDirectory) Put(m domain.Merchant) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m.AcceptedCurrencies = slices.Clone(m.AcceptedCurrencies)
	d.merchants[m.ID] = m
}

func (d *MerchantDirectory) GetMerchant(_ context.Context, id uuid.UUID) (*domain.Merchant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	m, ok := d.merchants[id]
	if !ok {
		return nil, nil
	}
	m.AcceptedCurrencies = slices.Clone(m.AcceptedCurrencies)
	return &m, nil
}
