package domain

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the lifecycle state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusSettled   PaymentStatus = "settled"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusExpired   PaymentStatus = "expired"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// transitions lists every forward edge of the lifecycle. Anything not listed
// (including every edge out of a terminal state) is rejected.
var transitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:   {PaymentStatusConfirmed, PaymentStatusExpired, PaymentStatusFailed},
	PaymentStatusConfirmed: {PaymentStatusSettled, PaymentStatusRefunded, PaymentStatusFailed},
}

// IsTerminal returns true if no transition leaves this status.
func (s PaymentStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Valid reports whether s is a known status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusConfirmed, PaymentStatusSettled,
		PaymentStatusRefunded, PaymentStatusExpired, PaymentStatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is an edge of the state machine.
// from == to is allowed for non-terminal states: it is a field-only update
// guarded by the same compare-and-swap.
func CanTransition(from, to PaymentStatus) bool {
	if from == to {
		return !from.IsTerminal()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Payment is the authoritative record of a single-use deposit address and
// its settlement lifecycle.
type Payment struct {
	PaymentID           string            `json:"paymentId"`
	MerchantID          uuid.UUID         `json:"merchantId"`
	MerchantAddress     string            `json:"merchantAddress"`
	UniqueAddress       string            `json:"uniqueAddress"`
	EncryptedPrivateKey string            `json:"-"`
	Currency            string            `json:"currency"`
	ExpectedAmount      int64             `json:"expectedAmount"`
	ReceivedAmount      int64             `json:"receivedAmount"`
	Status              PaymentStatus     `json:"status"`
	Description         string            `json:"description,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	ExpiresAt           time.Time         `json:"expiresAt"`

	ContractRegistrationTxID *string `json:"contractRegistrationTxId,omitempty"`
	ConfirmationTxID         *string `json:"confirmationTxId,omitempty"`
	ObservedTxID             *string `json:"observedTxId,omitempty"`
	SettlementTxID           *string `json:"settlementTxId,omitempty"`

	SettlementClaim     *string    `json:"-"`
	SettlementClaimedAt *time.Time `json:"-"`

	ErrorMessage *string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	ConfirmedAt  *time.Time `json:"confirmedAt,omitempty"`
	SettledAt    *time.Time `json:"settledAt,omitempty"`
}

// IsExpired reports whether a pending payment has passed its deadline.
func (p *Payment) IsExpired(now time.Time) bool {
	return p.Status == PaymentStatusPending && !now.Before(p.ExpiresAt)
}

// IsRegistered reports whether the ledger registration has been recorded.
func (p *Payment) IsRegistered() bool {
	return p.ContractRegistrationTxID != nil
}

// IsClaimed reports whether a settlement attempt currently holds the payment.
func (p *Payment) IsClaimed() bool {
	return p.SettlementClaim != nil
}

// PaymentUpdate carries the fields written together with a status change.
// Nil fields are left untouched. Transaction references are set once and a
// stored value is never replaced; ReceivedAmount never decreases.
type PaymentUpdate struct {
	ReceivedAmount           *int64
	ContractRegistrationTxID *string
	ConfirmationTxID         *string
	ObservedTxID             *string
	SettlementTxID           *string
	ErrorMessage             *string
	ConfirmedAt              *time.Time
	SettledAt                *time.Time

	// ExpectClaim narrows the guard to the settlement holding this claim.
	ExpectClaim string
	// RequireUnclaimed narrows the guard to payments no settlement holds.
	RequireUnclaimed bool
}

// DepositKey is the Key Vault output for one payment.
type DepositKey struct {
	Address             string
	EncryptedPrivateKey string
}

// DepositNotification is what the chain observer reports for a deposit.
type DepositNotification struct {
	PaymentID      string `json:"paymentId"`
	ObservedAmount int64  `json:"observedAmount"`
	ObservedTxID   string `json:"observedTxId"`
}

var txIDPattern = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)

// ValidTxID reports whether s is a 32-byte transaction id in hex, with or
// without a 0x prefix.
func ValidTxID(s string) bool {
	return txIDPattern.MatchString(s)
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
