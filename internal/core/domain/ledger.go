package domain

import "time"

// LedgerStatus is the contract-side view of a payment.
type LedgerStatus string

const (
	LedgerStatusRegistered LedgerStatus = "registered"
	LedgerStatusConfirmed  LedgerStatus = "confirmed"
	LedgerStatusSettled    LedgerStatus = "settled"
	LedgerStatusExpired    LedgerStatus = "expired"
)

// AtLeast reports whether the ledger record has reached target on the
// registered -> confirmed -> settled path.
func (s LedgerStatus) AtLeast(target LedgerStatus) bool {
	rank := func(v LedgerStatus) int {
		switch v {
		case LedgerStatusRegistered:
			return 1
		case LedgerStatusConfirmed:
			return 2
		case LedgerStatusSettled:
			return 3
		}
		return 0
	}
	return rank(s) >= rank(target) && rank(target) > 0
}

// LedgerPayment is the result of the contract's get-payment read.
type LedgerPayment struct {
	PaymentID        string       `json:"paymentId"`
	Status           LedgerStatus `json:"status"`
	Merchant         string       `json:"merchant"`
	ExpectedAmount   int64        `json:"expectedAmount"`
	ReceivedAmount   int64        `json:"receivedAmount"`
	RegistrationTxID string       `json:"registrationTxId,omitempty"`
	CreatedAt        *time.Time   `json:"createdAt,omitempty"`
	ConfirmedAt      *time.Time   `json:"confirmedAt,omitempty"`
	SettledAt        *time.Time   `json:"settledAt,omitempty"`
}

// LedgerTx identifies a broadcast ledger transaction.
type LedgerTx struct {
	TxID string `json:"txid"`
}

// RegisterRequest carries the register-payment arguments.
type RegisterRequest struct {
	PaymentID       string
	MerchantAddress string
	UniqueAddress   string
	ExpectedAmount  int64
	Metadata        string
	ExpiresInBlocks uint64
}

// SettlementResult describes a completed settlement.
type SettlementResult struct {
	ContractTxID   string
	TransferTxID   string
	PlatformTxID   string
	MerchantAmount int64
	PlatformFee    int64
}
