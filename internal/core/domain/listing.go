package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentFilter selects one page of a merchant's payments, newest first.
type PaymentFilter struct {
	MerchantID uuid.UUID
	Status     PaymentStatus // empty matches every status
	Limit      int
	Offset     int
}

// PaymentPage is one page of a merchant's payments.
type PaymentPage struct {
	Payments   []Payment  `json:"payments"`
	Pagination Pagination `json:"pagination"`
}

type Pagination struct {
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"hasMore"`
}

// TimelineEntry is one lifecycle step of a payment.
type TimelineEntry struct {
	Status    PaymentStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	TxID      string        `json:"transactionHash,omitempty"`
}

// Timeline derives the payment's history from its recorded timestamps and
// transaction references. Terminal states other than settled have no
// dedicated timestamp and use UpdatedAt.
func (p *Payment) Timeline() []TimelineEntry {
	entries := []TimelineEntry{{Status: PaymentStatusPending, Timestamp: p.CreatedAt, TxID: deref(p.ContractRegistrationTxID)}}
	if p.ConfirmedAt != nil {
		entries = append(entries, TimelineEntry{Status: PaymentStatusConfirmed, Timestamp: *p.ConfirmedAt, TxID: deref(p.ObservedTxID)})
	}
	switch p.Status {
	case PaymentStatusSettled:
		at := p.UpdatedAt
		if p.SettledAt != nil {
			at = *p.SettledAt
		}
		entries = append(entries, TimelineEntry{Status: PaymentStatusSettled, Timestamp: at, TxID: deref(p.SettlementTxID)})
	case PaymentStatusRefunded, PaymentStatusExpired, PaymentStatusFailed:
		entries = append(entries, TimelineEntry{Status: p.Status, Timestamp: p.UpdatedAt})
	}
	return entries
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
