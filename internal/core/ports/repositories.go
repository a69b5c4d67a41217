package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"time"

	"settlement-gateway/internal/core/domain"

	"github.com/google/uuid"
)

// PaymentRepository is the Payment Lifecycle Store. Every state change goes
// through UpdateStatus, a compare-and-swap on the stored status.
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	// FindByPaymentID returns (nil, nil) when no such payment exists.
	FindByPaymentID(ctx context.Context, paymentID string) (*domain.Payment, error)
	// UpdateStatus applies upd and moves the payment from expected to next.
	// It returns domain.ErrStatusConflict when the stored status (or the
	// claim guard in upd) does not match.
	UpdateStatus(ctx context.Context, paymentID string, expected, next domain.PaymentStatus, upd domain.PaymentUpdate) error
	// ClaimSettlement marks a confirmed, unclaimed payment as held by claimID.
	ClaimSettlement(ctx context.Context, paymentID, claimID string, now time.Time) error
	ReleaseSettlementClaim(ctx context.Context, paymentID, claimID string) error

	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.Payment, error)
	ListUnregisteredPending(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Payment, error)
	ListStaleConfirmed(ctx context.Context, updatedBefore time.Time, limit int) ([]domain.Payment, error)

	// ListByMerchant returns one page of f.MerchantID's payments, newest
	// first, and the number of payments matching f overall.
	ListByMerchant(ctx context.Context, f domain.PaymentFilter) ([]domain.Payment, int64, error)
}

// WebhookEndpointRepository reads merchant endpoints and aggregates delivery stats.
type WebhookEndpointRepository interface {
	Create(ctx context.Context, endpoint *domain.WebhookEndpoint) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookEndpoint, error)
	ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]domain.WebhookEndpoint, error)
	RecordDelivery(ctx context.Context, id uuid.UUID, outcome domain.DeliveryOutcome) error
	ResetStats(ctx context.Context, id uuid.UUID) error
}

// MerchantDirectory is the read side of the merchant account store.
type MerchantDirectory interface {
	// GetMerchant returns (nil, nil) for an unknown merchant.
	GetMerchant(ctx context.Context, id uuid.UUID) (*domain.Merchant, error)
}
