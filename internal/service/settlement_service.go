package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"settlement-gateway/internal/core/domain"
	"settlement-gateway/internal/core/ports"
	"settlement-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

const (
	paymentIDPrefix = "pay_"
	minExpiry       = time.Minute

	defaultPageSize = 20
	maxPageSize     = 100
)

// SettlementConfig holds the orchestrator's business limits.
type SettlementConfig struct {
	MinAmount     int64
	Currencies    []string
	DefaultExpiry time.Duration
	MaxExpiry     time.Duration
	AutoSettle    bool
	BlockTime     time.Duration
	Retry         RetryPolicy
}

// SettlementServiceImpl implements ports.SettlementService. It is the only
// writer of payment state; every change is a compare-and-swap through the
// PaymentRepository.
type SettlementServiceImpl struct {
	payments  ports.PaymentRepository
	merchants ports.MerchantDirectory
	vault     ports.KeyVault
	ledger    ports.LedgerClient
	notifier  ports.EventNotifier
	metrics   ports.Metrics
	cfg       SettlementConfig
	log       zerolog.Logger
	now       func() time.Time
}

// NewSettlementService creates a new SettlementServiceImpl.
func NewSettlementService(
	payments ports.PaymentRepository,
	merchants ports.MerchantDirectory,
	vault ports.KeyVault,
	ledger ports.LedgerClient,
	notifier ports.EventNotifier,
	metrics ports.Metrics,
	cfg SettlementConfig,
	log zerolog.Logger,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		payments:  payments,
		merchants: merchants,
		vault:     vault,
		ledger:    ledger,
		notifier:  notifier,
		metrics:   metricsOrNop(metrics),
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// CreatePayment validates the request, issues a deposit address, persists the
// payment as pending and registers it on the ledger.
func (s *SettlementServiceImpl) CreatePayment(ctx context.Context, in ports.CreatePaymentInput) (*domain.Payment, error) {
	if in.Amount < s.cfg.MinAmount {
		return nil, apperror.ErrAmountBelowMinimum(s.cfg.MinAmount)
	}
	currency := strings.ToLower(in.Currency)
	if !slices.Contains(s.cfg.Currencies, currency) {
		return nil, apperror.ErrUnsupportedCurrency(in.Currency)
	}
	expiresIn := in.ExpiresIn
	if expiresIn == 0 {
		expiresIn = s.cfg.DefaultExpiry
	}
	if expiresIn < minExpiry || expiresIn > s.cfg.MaxExpiry {
		return nil, apperror.ErrInvalidExpiry()
	}

	merchant, err := s.merchants.GetMerchant(ctx, in.MerchantID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get merchant: %w", err))
	}
	if merchant == nil {
		return nil, apperror.ErrNotFound("Merchant")
	}
	if !merchant.Active {
		return nil, apperror.ErrMerchantInactive()
	}
	if !merchant.Accepts(currency) {
		return nil, apperror.ErrCurrencyNotAccepted(currency)
	}

	paymentID := paymentIDPrefix + ulid.Make().String()
	key, err := s.vault.GenerateAddress(paymentID)
	if err != nil {
		return nil, apperror.ErrKeyMaterial(err)
	}

	now := s.now().UTC()
	p := &domain.Payment{
		PaymentID:           paymentID,
		MerchantID:          merchant.ID,
		MerchantAddress:     merchant.SettlementAddress,
		UniqueAddress:       key.Address,
		EncryptedPrivateKey: key.EncryptedPrivateKey,
		Currency:            currency,
		ExpectedAmount:      in.Amount,
		Status:              domain.PaymentStatusPending,
		Description:         in.Description,
		Metadata:            in.Metadata,
		ExpiresAt:           now.Add(expiresIn),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create payment: %w", err))
	}

	s.log.Info().
		Str("payment_id", p.PaymentID).
		Str("merchant_id", p.MerchantID.String()).
		Str("currency", p.Currency).
		Int64("expected_amount", p.ExpectedAmount).
		Msg("payment created")

	registered, err := s.register(ctx, p)
	if err != nil && !isUnavailable(err) {
		return nil, err
	}
	s.emit(ctx, registered, domain.EventPaymentCreated)
	return registered, nil
}

// GetPayment returns the payment if it belongs to merchantID.
func (s *SettlementServiceImpl) GetPayment(ctx context.Context, merchantID uuid.UUID, paymentID string) (*domain.Payment, error) {
	return s.owned(ctx, merchantID, paymentID)
}

// ListPayments returns one page of the merchant's payments, newest first.
func (s *SettlementServiceImpl) ListPayments(ctx context.Context, in ports.ListPaymentsInput) (*domain.PaymentPage, error) {
	if in.Page == 0 {
		in.Page = 1
	}
	if in.Limit == 0 {
		in.Limit = defaultPageSize
	}
	if in.Page < 1 || in.Limit < 1 || in.Limit > maxPageSize {
		return nil, apperror.Validation(fmt.Sprintf("page must be >= 1 and limit between 1 and %d", maxPageSize))
	}
	if in.Status != "" && !in.Status.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown status %q", in.Status))
	}

	offset := (in.Page - 1) * in.Limit
	payments, total, err := s.payments.ListByMerchant(ctx, domain.PaymentFilter{
		MerchantID: in.MerchantID,
		Status:     in.Status,
		Limit:      in.Limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list payments: %w", err))
	}
	if payments == nil {
		payments = []domain.Payment{}
	}
	return &domain.PaymentPage{
		Payments: payments,
		Pagination: domain.Pagination{
			Page:    in.Page,
			Limit:   in.Limit,
			Total:   total,
			HasMore: int64(offset+len(payments)) < total,
		},
	}, nil
}

// NotifyDeposit records a deposit observed by the chain observer. Delivery
// is at-least-once, so repeated or concurrent notifications for the same
// payment collapse into one confirmation.
func (s *SettlementServiceImpl) NotifyDeposit(ctx context.Context, n domain.DepositNotification) (*domain.Payment, error) {
	if n.PaymentID == "" || n.ObservedTxID == "" {
		return nil, apperror.Validation("paymentId and observedTxId are required")
	}
	if n.ObservedAmount <= 0 {
		return nil, apperror.Validation("observedAmount must be positive")
	}
	if !domain.ValidTxID(n.ObservedTxID) {
		return nil, apperror.Validation("observedTxId must be a 32-byte hex transaction id")
	}

	p, err := s.load(ctx, n.PaymentID)
	if err != nil {
		return nil, err
	}
	log := s.log.With().Str("payment_id", p.PaymentID).Str("observed_tx_id", n.ObservedTxID).Logger()

	if p.Status != domain.PaymentStatusPending {
		log.Debug().Str("status", string(p.Status)).Msg("deposit for non-pending payment ignored")
		return p, nil
	}
	if p.IsExpired(s.now()) {
		if _, err := s.expire(ctx, p, nil); err != nil {
			return nil, err
		}
		return nil, apperror.ErrPaymentExpired()
	}
	if n.ObservedAmount < p.ExpectedAmount {
		log.Warn().Int64("expected", p.ExpectedAmount).Int64("observed", n.ObservedAmount).Msg("underpayment")
		return nil, apperror.ErrUnderpayment(p.ExpectedAmount, n.ObservedAmount)
	}

	now := s.now().UTC()
	confirmed, won, err := s.transition(ctx, p, domain.PaymentStatusConfirmed, domain.PaymentUpdate{
		ReceivedAmount: &n.ObservedAmount,
		ObservedTxID:   &n.ObservedTxID,
		ConfirmedAt:    &now,
	}, "notify_deposit")
	if err != nil {
		return nil, err
	}
	if !won {
		return confirmed, nil
	}
	log.Info().Int64("received_amount", n.ObservedAmount).Msg("payment confirmed")

	confirmed, err = s.confirmOnLedger(ctx, confirmed)
	if err != nil {
		if isUnavailable(err) {
			// Stays confirmed; the reconciler repeats the ledger call.
			log.Warn().Err(err).Msg("ledger confirmation outcome unknown")
		} else {
			return nil, err
		}
	}
	s.emit(ctx, confirmed, domain.EventPaymentConfirmed)

	if s.cfg.AutoSettle && err == nil {
		settled, serr := s.Settle(ctx, confirmed.PaymentID)
		if serr != nil {
			log.Warn().Err(serr).Msg("auto-settle did not complete")
			return s.load(ctx, confirmed.PaymentID)
		}
		return settled, nil
	}
	return confirmed, nil
}

// Settle releases the funds of a confirmed payment to the merchant. The
// settlement claim guarantees at most one ledger settle per payment at a
// time, and a settled payment is never settled again.
func (s *SettlementServiceImpl) Settle(ctx context.Context, paymentID string) (*domain.Payment, error) {
	p, err := s.load(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	switch p.Status {
	case domain.PaymentStatusSettled:
		return p, nil
	case domain.PaymentStatusConfirmed:
	default:
		return nil, apperror.ErrInvalidTransition(string(p.Status), string(domain.PaymentStatusSettled))
	}

	log := s.log.With().Str("payment_id", p.PaymentID).Logger()

	claim := uuid.NewString()
	if err := s.payments.ClaimSettlement(ctx, p.PaymentID, claim, s.now().UTC()); err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			s.lostRace("settle_claim", p.PaymentID)
			return s.load(ctx, p.PaymentID)
		}
		return nil, apperror.ErrDatabaseError(fmt.Errorf("claim settlement: %w", err))
	}

	res, err := s.ledger.Settle(ctx, p)
	if err != nil {
		if domain.IsLedgerRetryable(err) {
			if rerr := s.payments.ReleaseSettlementClaim(context.WithoutCancel(ctx), p.PaymentID, claim); rerr != nil {
				log.Error().Err(rerr).Msg("failed to release settlement claim")
			}
			log.Warn().Err(err).Msg("settlement outcome unknown, claim released")
			return nil, apperror.ErrLedgerUnavailable(err)
		}

		msg := "settlement failed: " + err.Error()
		failed, won, terr := s.transition(ctx, p, domain.PaymentStatusFailed, domain.PaymentUpdate{
			ErrorMessage: &msg,
			ExpectClaim:  claim,
		}, "settle_fail")
		if terr != nil {
			return nil, terr
		}
		if won {
			log.Error().Err(err).Msg("settlement failed")
			s.emit(ctx, failed, domain.EventPaymentFailed)
		}
		if errors.Is(err, domain.ErrKeyDecryption) {
			return nil, apperror.ErrKeyMaterial(err)
		}
		return nil, apperror.ErrLedgerRejected(err)
	}

	now := s.now().UTC()
	settled, won, err := s.transition(ctx, p, domain.PaymentStatusSettled, domain.PaymentUpdate{
		SettlementTxID: &res.TransferTxID,
		SettledAt:      &now,
		ExpectClaim:    claim,
	}, "settle")
	if err != nil {
		return nil, err
	}
	if won {
		log.Info().
			Str("transfer_tx_id", res.TransferTxID).
			Int64("merchant_amount", res.MerchantAmount).
			Int64("platform_fee", res.PlatformFee).
			Msg("payment settled")
		s.emit(ctx, settled, domain.EventPaymentSettled)
	} else {
		log.Error().Str("status", string(settled.Status)).Msg("settled on ledger but store moved under the claim")
	}
	return settled, nil
}

// CancelPayment lets the owner abandon a payment that has not received funds.
func (s *SettlementServiceImpl) CancelPayment(ctx context.Context, merchantID uuid.UUID, paymentID, reason string) (*domain.Payment, error) {
	p, err := s.owned(ctx, merchantID, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.PaymentStatusPending {
		return nil, apperror.ErrCannotCancel(string(p.Status))
	}

	msg := "cancelled by merchant"
	if reason != "" {
		msg += ": " + reason
	}
	cancelled, won, err := s.transition(ctx, p, domain.PaymentStatusExpired, domain.PaymentUpdate{ErrorMessage: &msg}, "cancel")
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, apperror.ErrCannotCancel(string(cancelled.Status))
	}

	s.log.Info().Str("payment_id", p.PaymentID).Str("reason", reason).Msg("payment cancelled")
	s.emit(ctx, cancelled, domain.EventPaymentCancelled)
	return cancelled, nil
}

// RefundPayment marks a confirmed payment as refunded. A payment that a
// settlement currently holds cannot be refunded.
func (s *SettlementServiceImpl) RefundPayment(ctx context.Context, merchantID uuid.UUID, paymentID, reason string) (*domain.Payment, error) {
	p, err := s.owned(ctx, merchantID, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.PaymentStatusConfirmed {
		return nil, apperror.ErrInvalidTransition(string(p.Status), string(domain.PaymentStatusRefunded))
	}
	if p.IsClaimed() {
		return nil, apperror.ErrSettlementInProgress()
	}

	refunded, won, err := s.transition(ctx, p, domain.PaymentStatusRefunded, domain.PaymentUpdate{RequireUnclaimed: true}, "refund")
	if err != nil {
		return nil, err
	}
	if !won {
		if refunded.Status == domain.PaymentStatusConfirmed && refunded.IsClaimed() {
			return nil, apperror.ErrSettlementInProgress()
		}
		return nil, apperror.ErrInvalidTransition(string(refunded.Status), string(domain.PaymentStatusRefunded))
	}

	s.log.Info().Str("payment_id", p.PaymentID).Str("reason", reason).Msg("payment refunded")
	s.emit(ctx, refunded, domain.EventPaymentRefunded)
	return refunded, nil
}

// ExpirePayment moves an overdue pending payment to expired. Payments that
// are not due are returned unchanged.
func (s *SettlementServiceImpl) ExpirePayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	p, err := s.load(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !p.IsExpired(s.now()) {
		return p, nil
	}
	return s.expire(ctx, p, nil)
}

// EnsureRegistered retries ledger registration for a pending payment whose
// earlier attempt ended with an unknown outcome.
func (s *SettlementServiceImpl) EnsureRegistered(ctx context.Context, paymentID string) (*domain.Payment, error) {
	p, err := s.load(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.PaymentStatusPending || p.IsRegistered() {
		return p, nil
	}
	if p.IsExpired(s.now()) {
		return s.expire(ctx, p, nil)
	}
	return s.register(ctx, p)
}

// ReconcileConfirmed drives a confirmed payment that stopped moving: it drops
// a claim older than claimTTL, repeats a missing ledger confirmation and
// retries settlement. Transfer idempotency keys make the retry safe.
func (s *SettlementServiceImpl) ReconcileConfirmed(ctx context.Context, paymentID string, claimTTL time.Duration) (*domain.Payment, error) {
	p, err := s.load(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.PaymentStatusConfirmed {
		return p, nil
	}
	log := s.log.With().Str("payment_id", p.PaymentID).Logger()

	hadClaim := p.IsClaimed()
	if hadClaim {
		if p.SettlementClaimedAt != nil && s.now().Sub(*p.SettlementClaimedAt) < claimTTL {
			return p, nil
		}
		if err := s.payments.ReleaseSettlementClaim(ctx, p.PaymentID, *p.SettlementClaim); err != nil {
			if errors.Is(err, domain.ErrStatusConflict) {
				s.lostRace("release_stale_claim", p.PaymentID)
				return s.load(ctx, p.PaymentID)
			}
			return nil, apperror.ErrDatabaseError(fmt.Errorf("release claim: %w", err))
		}
		log.Warn().Msg("stale settlement claim released")
		if p, err = s.load(ctx, p.PaymentID); err != nil {
			return nil, err
		}
	}

	if p.ConfirmationTxID == nil {
		if p, err = s.confirmOnLedger(ctx, p); err != nil {
			return nil, err
		}
		if p.Status != domain.PaymentStatusConfirmed {
			return p, nil
		}
	}

	if !s.cfg.AutoSettle && !hadClaim {
		return p, nil
	}
	return s.Settle(ctx, p.PaymentID)
}

// register runs register-payment with re-verification and records the
// outcome. An unknown outcome leaves the payment pending and returns a LDG
// unavailable error alongside it.
func (s *SettlementServiceImpl) register(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	req := domain.RegisterRequest{
		PaymentID:       p.PaymentID,
		MerchantAddress: p.MerchantAddress,
		UniqueAddress:   p.UniqueAddress,
		ExpectedAmount:  p.ExpectedAmount,
		Metadata:        p.Description,
		ExpiresInBlocks: s.blocksUntil(p.ExpiresAt),
	}

	txID, err := s.ledgerStep(ctx, p.PaymentID, ledgerStep{
		op: "register",
		call: func(ctx context.Context) (*domain.LedgerTx, error) {
			return s.ledger.Register(ctx, req)
		},
		applied:     domain.ErrAlreadyRegistered,
		appliedIsOK: true,
		landed: func(lp *domain.LedgerPayment) (string, bool) {
			return lp.RegistrationTxID, lp.Status.AtLeast(domain.LedgerStatusRegistered)
		},
	})
	if err != nil {
		if domain.IsLedgerRetryable(err) {
			s.log.Warn().Err(err).Str("payment_id", p.PaymentID).Msg("registration outcome unknown, left pending")
			return p, apperror.ErrLedgerUnavailable(err)
		}
		return nil, s.failOnLedger(ctx, p, "registration rejected", err)
	}

	if txID == "" {
		// Registered, but the txid is still unknown; the reconciler
		// reads it back later.
		s.log.Warn().Str("payment_id", p.PaymentID).Msg("ledger reports registration without a txid")
		return p, nil
	}
	registered, _, err := s.transition(ctx, p, p.Status, domain.PaymentUpdate{ContractRegistrationTxID: &txID}, "register")
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("payment_id", p.PaymentID).Str("tx_id", txID).Msg("payment registered on ledger")
	return registered, nil
}

// confirmOnLedger runs confirm-payment-received for a confirmed payment.
func (s *SettlementServiceImpl) confirmOnLedger(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	observed := ""
	if p.ObservedTxID != nil {
		observed = *p.ObservedTxID
	}

	txID, err := s.ledgerStep(ctx, p.PaymentID, ledgerStep{
		op: "confirm",
		call: func(ctx context.Context) (*domain.LedgerTx, error) {
			return s.ledger.ConfirmReceived(ctx, p.PaymentID, p.ReceivedAmount, observed)
		},
		applied: domain.ErrLedgerInvalidState,
		landed: func(lp *domain.LedgerPayment) (string, bool) {
			return "", lp.Status.AtLeast(domain.LedgerStatusConfirmed)
		},
	})
	if err != nil {
		if domain.IsLedgerRetryable(err) {
			return p, apperror.ErrLedgerUnavailable(err)
		}
		return nil, s.failOnLedger(ctx, p, "ledger confirmation rejected", err)
	}
	if txID == "" {
		return p, nil
	}

	confirmed, _, err := s.transition(ctx, p, p.Status, domain.PaymentUpdate{ConfirmationTxID: &txID}, "confirm")
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

type ledgerStep struct {
	op   string
	call func(context.Context) (*domain.LedgerTx, error)
	// applied is a rejection that may mean an earlier attempt already landed.
	applied error
	// appliedIsOK makes applied conclusive on its own: the step succeeded
	// even when the follow-up read cannot show it yet.
	appliedIsOK bool
	// landed inspects the ledger record and reports whether the step took
	// effect, with the txid when the record carries one.
	landed func(*domain.LedgerPayment) (string, bool)
}

// ledgerStep calls the ledger and, whenever the outcome is unknown or the
// rejection is ambiguous, re-reads the ledger before deciding. It never
// concludes failure from a timeout alone.
func (s *SettlementServiceImpl) ledgerStep(ctx context.Context, paymentID string, step ledgerStep) (string, error) {
	attempts := s.cfg.Retry.attempts()
	for attempt := 1; ; attempt++ {
		tx, err := step.call(ctx)
		if err == nil {
			return tx.TxID, nil
		}

		ambiguous := step.applied != nil && errors.Is(err, step.applied)
		if !ambiguous && !domain.IsLedgerRetryable(err) {
			return "", err
		}

		lp, qerr := s.ledger.GetPayment(ctx, paymentID)
		if qerr == nil && lp != nil {
			if txID, ok := step.landed(lp); ok {
				s.log.Info().Str("payment_id", paymentID).Str("op", step.op).Msg("ledger shows step already applied")
				return txID, nil
			}
		}
		if ambiguous {
			if step.appliedIsOK {
				s.log.Warn().Err(qerr).Str("payment_id", paymentID).Str("op", step.op).
					Msg("ledger reports step applied but the record is not readable yet")
				return "", nil
			}
			if qerr != nil {
				return "", qerr
			}
			return "", err
		}

		if attempt >= attempts {
			return "", err
		}
		s.log.Debug().Err(err).Str("payment_id", paymentID).Str("op", step.op).Int("attempt", attempt).Msg("retrying ledger call")
		if serr := sleepCtx(ctx, s.cfg.Retry.Delay(attempt)); serr != nil {
			return "", err
		}
	}
}

// failOnLedger records a terminal ledger rejection on p and returns the
// error the caller should surface.
func (s *SettlementServiceImpl) failOnLedger(ctx context.Context, p *domain.Payment, what string, cause error) error {
	msg := what + ": " + cause.Error()
	failed, won, err := s.transition(ctx, p, domain.PaymentStatusFailed, domain.PaymentUpdate{ErrorMessage: &msg}, "ledger_reject")
	if err != nil {
		return err
	}
	if won {
		s.log.Error().Err(cause).Str("payment_id", p.PaymentID).Msg(what)
		s.emit(ctx, failed, domain.EventPaymentFailed)
	}
	return apperror.ErrLedgerRejected(cause)
}

func (s *SettlementServiceImpl) expire(ctx context.Context, p *domain.Payment, msg *string) (*domain.Payment, error) {
	expired, won, err := s.transition(ctx, p, domain.PaymentStatusExpired, domain.PaymentUpdate{ErrorMessage: msg}, "expire")
	if err != nil {
		return nil, err
	}
	if won {
		s.log.Info().Str("payment_id", p.PaymentID).Msg("payment expired")
		s.emit(ctx, expired, domain.EventPaymentExpired)
	}
	return expired, nil
}

// transition applies a guarded status change and returns the stored payment
// afterwards. won is false when another writer got there first; that is not
// an error.
func (s *SettlementServiceImpl) transition(ctx context.Context, p *domain.Payment, next domain.PaymentStatus, upd domain.PaymentUpdate, op string) (*domain.Payment, bool, error) {
	if !domain.CanTransition(p.Status, next) {
		return nil, false, apperror.ErrInvalidTransition(string(p.Status), string(next))
	}

	err := s.payments.UpdateStatus(ctx, p.PaymentID, p.Status, next, upd)
	switch {
	case errors.Is(err, domain.ErrStatusConflict):
		s.lostRace(op, p.PaymentID)
		current, lerr := s.load(ctx, p.PaymentID)
		return current, false, lerr
	case err != nil:
		return nil, false, apperror.ErrDatabaseError(fmt.Errorf("update payment status: %w", err))
	}

	if p.Status != next {
		s.metrics.Transition(p.Status, next)
	}
	updated, err := s.load(ctx, p.PaymentID)
	return updated, true, err
}

func (s *SettlementServiceImpl) lostRace(op, paymentID string) {
	s.metrics.Conflict(op)
	s.log.Debug().Str("op", op).Str("payment_id", paymentID).Msg("lost compare-and-swap, leaving payment to the winner")
}

func (s *SettlementServiceImpl) load(ctx context.Context, paymentID string) (*domain.Payment, error) {
	p, err := s.payments.FindByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("find payment: %w", err))
	}
	if p == nil {
		return nil, apperror.ErrNotFound("Payment")
	}
	return p, nil
}

// owned hides other merchants' payments behind the same not-found error.
func (s *SettlementServiceImpl) owned(ctx context.Context, merchantID uuid.UUID, paymentID string) (*domain.Payment, error) {
	p, err := s.load(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.MerchantID != merchantID {
		return nil, apperror.ErrNotFound("Payment")
	}
	return p, nil
}

// emit hands an event to the notifier. Webhook problems are logged and
// never fail the transition that produced the event.
func (s *SettlementServiceImpl) emit(ctx context.Context, p *domain.Payment, event domain.EventType) {
	if s.notifier == nil || p == nil {
		return
	}
	if err := s.notifier.Notify(ctx, p, event); err != nil {
		s.log.Error().Err(err).
			Str("payment_id", p.PaymentID).
			Str("event", string(event)).
			Msg("failed to enqueue webhook")
	}
}

func (s *SettlementServiceImpl) blocksUntil(deadline time.Time) uint64 {
	if s.cfg.BlockTime <= 0 {
		return 0
	}
	remaining := deadline.Sub(s.now())
	if remaining <= 0 {
		return 1
	}
	blocks := (remaining + s.cfg.BlockTime - 1) / s.cfg.BlockTime
	return uint64(blocks)
}

func isUnavailable(err error) bool {
	return apperror.Code(err) == "LDG_001"
}
