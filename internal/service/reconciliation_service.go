package service

import (
	"context"
	"time"

	"settlement-gateway/internal/core/domain"
	"settlement-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

const reconcileLockName = "reconcile"

// ReconcilerConfig controls the periodic sweep.
type ReconcilerConfig struct {
	Interval            time.Duration
	RegistrationGrace   time.Duration
	StaleConfirmedAfter time.Duration
	ClaimTTL            time.Duration
	LockTTL             time.Duration
	BatchSize           int
}

// ReconcileReport counts what one sweep changed.
type ReconcileReport struct {
	Expired    int
	Registered int
	Settled    int
	Errors     int
}

// ReconciliationService drives payments whose in-line processing stopped
// short: overdue pending payments, registrations with an unknown outcome and
// confirmed payments nobody finished settling.
type ReconciliationService struct {
	payments   ports.PaymentRepository
	settlement ports.SettlementService
	lock       ports.JobLock
	metrics    ports.Metrics
	cfg        ReconcilerConfig
	log        zerolog.Logger
	now        func() time.Time
}

// NewReconciliationService creates a reconciler. lock may be nil when a
// single instance runs.
func NewReconciliationService(
	payments ports.PaymentRepository,
	settlement ports.SettlementService,
	lock ports.JobLock,
	metrics ports.Metrics,
	cfg ReconcilerConfig,
	log zerolog.Logger,
) *ReconciliationService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.Interval
	}
	return &ReconciliationService{
		payments:   payments,
		settlement: settlement,
		lock:       lock,
		metrics:    metricsOrNop(metrics),
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}
}

// Run sweeps every Interval until ctx is cancelled.
func (r *ReconciliationService) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.log.Info().Dur("interval", r.cfg.Interval).Msg("reconciler started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("reconciler stopped")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.log.Error().Err(err).Msg("reconcile sweep failed")
			}
		}
	}
}

// RunOnce performs a single sweep if this instance wins the job lock.
func (r *ReconciliationService) RunOnce(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	if r.lock != nil {
		token, ok, err := r.lock.Acquire(ctx, reconcileLockName, r.cfg.LockTTL)
		if err != nil {
			return report, err
		}
		if !ok {
			r.log.Debug().Msg("reconcile lock held elsewhere, skipping sweep")
			return report, nil
		}
		defer func() {
			if err := r.lock.Release(context.WithoutCancel(ctx), reconcileLockName, token); err != nil {
				r.log.Warn().Err(err).Msg("failed to release reconcile lock")
			}
		}()
	}

	now := r.now().UTC()

	expired, err := r.payments.ListExpiredPending(ctx, now, r.cfg.BatchSize)
	if err != nil {
		return report, err
	}
	for _, p := range expired {
		got, err := r.settlement.ExpirePayment(ctx, p.PaymentID)
		if r.check(err, "expire", p.PaymentID, &report) && got.Status == domain.PaymentStatusExpired {
			report.Expired++
		}
	}

	unregistered, err := r.payments.ListUnregisteredPending(ctx, now.Add(-r.cfg.RegistrationGrace), r.cfg.BatchSize)
	if err != nil {
		return report, err
	}
	for _, p := range unregistered {
		got, err := r.settlement.EnsureRegistered(ctx, p.PaymentID)
		if r.check(err, "register", p.PaymentID, &report) && got.IsRegistered() {
			report.Registered++
		}
	}

	stale, err := r.payments.ListStaleConfirmed(ctx, now.Add(-r.cfg.StaleConfirmedAfter), r.cfg.BatchSize)
	if err != nil {
		return report, err
	}
	for _, p := range stale {
		got, err := r.settlement.ReconcileConfirmed(ctx, p.PaymentID, r.cfg.ClaimTTL)
		if r.check(err, "settle", p.PaymentID, &report) && got.Status == domain.PaymentStatusSettled {
			report.Settled++
		}
	}

	r.metrics.Reconciled("expired", report.Expired)
	r.metrics.Reconciled("registered", report.Registered)
	r.metrics.Reconciled("settled", report.Settled)

	if report.Expired+report.Registered+report.Settled+report.Errors > 0 {
		r.log.Info().
			Int("expired", report.Expired).
			Int("registered", report.Registered).
			Int("settled", report.Settled).
			Int("errors", report.Errors).
			Msg("reconcile sweep finished")
	}
	return report, nil
}

// check logs a per-payment failure; one bad payment never stops the sweep.
func (r *ReconciliationService) check(err error, step, paymentID string, report *ReconcileReport) bool {
	if err == nil {
		return true
	}
	report.Errors++
	r.log.Warn().Err(err).Str("step", step).Str("payment_id", paymentID).Msg("reconcile step failed")
	return false
}
