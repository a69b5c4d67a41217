package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"settlement-gateway/internal/core/domain"

	"github.com/google/uuid"
)

// KeyVault issues single-use deposit keys and opens them at settlement.
type KeyVault interface {
	GenerateAddress(paymentID string) (*domain.DepositKey, error)
	// Decrypt fails with domain.ErrKeyDecryption when the blob was not
	// produced for paymentID or has been altered.
	Decrypt(encryptedPrivateKey, paymentID string) ([]byte, error)
}

// LedgerClient talks to the external settlement contract. Failures are
// *domain.LedgerError values.
type LedgerClient interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.LedgerTx, error)
	ConfirmReceived(ctx context.Context, paymentID string, receivedAmount int64, observedTxID string) (*domain.LedgerTx, error)
	// Settle is the only operation that moves funds.
	Settle(ctx context.Context, payment *domain.Payment) (*domain.SettlementResult, error)
	// GetPayment returns (nil, nil) when the ledger has no record.
	GetPayment(ctx context.Context, paymentID string) (*domain.LedgerPayment, error)
}

// EventNotifier fans a lifecycle event out to the merchant's webhooks.
type EventNotifier interface {
	Notify(ctx context.Context, payment *domain.Payment, event domain.EventType) error
}

// EncryptionService handles AES-256-GCM encryption of secrets at rest.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secret string, payload []byte) string
	Verify(secret string, payload []byte, signature string) bool
}

// Service roles carried by internal API tokens.
const (
	RoleObserver = "observer"
	RoleAdmin    = "admin"
)

// TokenService issues and validates service tokens for the internal API.
type TokenService interface {
	Generate(subject, role string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed token claims.
type TokenClaims struct {
	Subject string
	Role    string
}

// IdempotencyCache stores rendered responses keyed by client idempotency key.
// Reserve marks a key as in flight so only one request per key runs the
// operation; Release drops the mark.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // nil when absent
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// JobLock elects a single instance to run a periodic job.
type JobLock interface {
	// Acquire returns a token and true when this caller now holds name.
	Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, name, token string) error
}

// RateLimiter counts requests per key in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult is the outcome of one RateLimiter.Allow call.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// Metrics records engine activity. Implementations must be safe for
// concurrent use.
type Metrics interface {
	Transition(from, to domain.PaymentStatus)
	Conflict(op string)
	LedgerCall(op, outcome string, d time.Duration)
	WebhookAttempt(outcome string, d time.Duration)
	Reconciled(kind string, n int)
}

// --- Service Ports (Business Logic) ---

// SettlementService is the settlement orchestrator.
type SettlementService interface {
	CreatePayment(ctx context.Context, in CreatePaymentInput) (*domain.Payment, error)
	GetPayment(ctx context.Context, merchantID uuid.UUID, paymentID string) (*domain.Payment, error)
	ListPayments(ctx context.Context, in ListPaymentsInput) (*domain.PaymentPage, error)
	NotifyDeposit(ctx context.Context, n domain.DepositNotification) (*domain.Payment, error)
	Settle(ctx context.Context, paymentID string) (*domain.Payment, error)
	CancelPayment(ctx context.Context, merchantID uuid.UUID, paymentID, reason string) (*domain.Payment, error)
	RefundPayment(ctx context.Context, merchantID uuid.UUID, paymentID, reason string) (*domain.Payment, error)
	ExpirePayment(ctx context.Context, paymentID string) (*domain.Payment, error)
	EnsureRegistered(ctx context.Context, paymentID string) (*domain.Payment, error)
	ReconcileConfirmed(ctx context.Context, paymentID string, claimTTL time.Duration) (*domain.Payment, error)
}

// CreatePaymentInput holds validated input for payment creation.
type CreatePaymentInput struct {
	MerchantID  uuid.UUID
	Amount      int64
	Currency    string
	Description string
	Metadata    map[string]string
	ExpiresIn   time.Duration // zero selects the configured default
}

// ListPaymentsInput selects a page of the caller's payments. Page counts
// from 1.
type ListPaymentsInput struct {
	MerchantID uuid.UUID
	Status     domain.PaymentStatus
	Page       int
	Limit      int
}

// WebhookAdmin exposes the explicit admin actions on endpoints.
type WebhookAdmin interface {
	ResetStats(ctx context.Context, endpointID uuid.UUID) error
}
