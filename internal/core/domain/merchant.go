package domain

import (
	"slices"

	"github.com/google/uuid"
)

// Merchant is the read-only view of a merchant account the engine needs.
// Accounts are owned by the merchant CRUD store.
type Merchant struct {
	ID                 uuid.UUID `json:"id"`
	SettlementAddress  string    `json:"settlementAddress"`
	AcceptedCurrencies []string  `json:"acceptedCurrencies"`
	Active             bool      `json:"active"`
}

// Accepts reports whether the merchant takes payments in currency.
func (m *Merchant) Accepts(currency string) bool {
	return slices.Contains(m.AcceptedCurrencies, currency)
}
