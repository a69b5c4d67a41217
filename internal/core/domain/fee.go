package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FeeSchedule computes how a received amount is split at settlement.
type FeeSchedule struct {
	PlatformRate decimal.Decimal
	TransferFee  int64
}

// NewFeeSchedule parses rate as a decimal fraction ("0.01" = 1%).
func NewFeeSchedule(rate string, transferFee int64) (FeeSchedule, error) {
	r, err := decimal.NewFromString(rate)
	if err != nil {
		return FeeSchedule{}, fmt.Errorf("parse platform fee rate: %w", err)
	}
	if r.IsNegative() || r.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return FeeSchedule{}, fmt.Errorf("platform fee rate %s out of range", r)
	}
	if transferFee < 0 {
		return FeeSchedule{}, fmt.Errorf("transfer fee %d is negative", transferFee)
	}
	return FeeSchedule{PlatformRate: r, TransferFee: transferFee}, nil
}

// Split is the outcome of applying a FeeSchedule.
type Split struct {
	MerchantAmount int64
	PlatformFee    int64
	NetworkFees    int64
}

// Split divides received between merchant and platform. The platform share
// is rounded down, and every transfer pays TransferFee out of the deposit.
func (f FeeSchedule) Split(received int64) (Split, error) {
	platform := decimal.NewFromInt(received).Mul(f.PlatformRate).Floor().IntPart()

	transfers := int64(1)
	if platform > 0 {
		transfers++
	}
	network := transfers * f.TransferFee

	merchant := received - platform - network
	if merchant <= 0 {
		return Split{}, fmt.Errorf("%w: received %d cannot cover fees %d", ErrLedgerInsufficientFunds, received, platform+network)
	}
	return Split{MerchantAmount: merchant, PlatformFee: platform, NetworkFees: network}, nil
}
