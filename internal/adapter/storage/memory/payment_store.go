// Package memory holds process-local repositories. They honour the same
// compare-and-swap contract as the postgres adapter and back the "memory"
// storage driver and the engine's scenario tests.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"settlement-gateway/internal/core/domain"
)

// PaymentStore implements ports.PaymentRepository.
type PaymentStore struct {
	mu       sync.Mutex
	payments map[string]*domain.Payment
	now      func() time.Time
}

func NewPaymentStore() *PaymentStore {
	return &PaymentStore{payments: make(map[string]*domain.Payment), now: time.Now}
}

func (s *PaymentStore) Create(_ context.Context, p *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payments[p.PaymentID]; exists {
		return fmt.Errorf("payment %s already exists", p.PaymentID)
	}
	s.payments[p.PaymentID] = clonePayment(p)
	return nil
}

func (s *PaymentStore) FindByPaymentID(_ context.Context, paymentID string) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[paymentID]
	if !ok {
		return nil, nil
	}
	return clonePayment(p), nil
}

func (s *PaymentStore) UpdateStatus(_ context.Context, paymentID string, expected, next domain.PaymentStatus, upd domain.PaymentUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[paymentID]
	if !ok || p.Status != expected {
		return domain.ErrStatusConflict
	}
	if upd.ExpectClaim != "" && (p.SettlementClaim == nil || *p.SettlementClaim != upd.ExpectClaim) {
		return domain.ErrStatusConflict
	}
	if upd.RequireUnclaimed && p.SettlementClaim != nil {
		return domain.ErrStatusConflict
	}

	if upd.ReceivedAmount != nil && *upd.ReceivedAmount > p.ReceivedAmount {
		p.ReceivedAmount = *upd.ReceivedAmount
	}
	setOnce(&p.ContractRegistrationTxID, upd.ContractRegistrationTxID)
	setOnce(&p.ConfirmationTxID, upd.ConfirmationTxID)
	setOnce(&p.ObservedTxID, upd.ObservedTxID)
	setOnce(&p.SettlementTxID, upd.SettlementTxID)
	setOnce(&p.ConfirmedAt, upd.ConfirmedAt)
	setOnce(&p.SettledAt, upd.SettledAt)
	if upd.ErrorMessage != nil {
		p.ErrorMessage = cloneStr(upd.ErrorMessage)
	}

	p.Status = next
	p.UpdatedAt = s.now().UTC()
	return nil
}

func (s *PaymentStore) ClaimSettlement(_ context.Context, paymentID, claimID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[paymentID]
	if !ok || p.Status != domain.PaymentStatusConfirmed || p.SettlementClaim != nil {
		return domain.ErrStatusConflict
	}
	p.SettlementClaim = &claimID
	at := now.UTC()
	p.SettlementClaimedAt = &at
	p.UpdatedAt = s.now().UTC()
	return nil
}

func (s *PaymentStore) ReleaseSettlementClaim(_ context.Context, paymentID, claimID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[paymentID]
	if !ok || p.SettlementClaim == nil || *p.SettlementClaim != claimID {
		return domain.ErrStatusConflict
	}
	p.SettlementClaim = nil
	p.SettlementClaimedAt = nil
	p.UpdatedAt = s.now().UTC()
	return nil
}

func (s *PaymentStore) ListExpiredPending(_ context.Context, now time.Time, limit int) ([]domain.Payment, error) {
	return s.list(limit, func(p *domain.Payment) bool {
		return p.Status == domain.PaymentStatusPending && !p.ExpiresAt.After(now)
	}), nil
}

func (s *PaymentStore) ListUnregisteredPending(_ context.Context, createdBefore time.Time, limit int) ([]domain.Payment, error) {
	return s.list(limit, func(p *domain.Payment) bool {
		return p.Status == domain.PaymentStatusPending && p.ContractRegistrationTxID == nil && p.CreatedAt.Before(createdBefore)
	}), nil
}

func (s *PaymentStore) ListStaleConfirmed(_ context.Context, updatedBefore time.Time, limit int) ([]domain.Payment, error) {
	return s.list(limit, func(p *domain.Payment) bool {
		return p.Status == domain.PaymentStatusConfirmed && p.UpdatedAt.Before(updatedBefore)
	}), nil
}

func (s *PaymentStore) ListByMerchant(_ context.Context, f domain.PaymentFilter) ([]domain.Payment, int64, error) {
	s.mu.Lock()
	var out []domain.Payment
	for _, p := range s.payments {
		if p.MerchantID == f.MerchantID && (f.Status == "" || p.Status == f.Status) {
			out = append(out, *clonePayment(p))
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].PaymentID > out[j].PaymentID
	})
	total := int64(len(out))
	if f.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (s *PaymentStore) list(limit int, match func(*domain.Payment) bool) []domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Payment
	for _, p := range s.payments {
		if match(p) {
			out = append(out, *clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func setOnce[T any](dst **T, v *T) {
	if *dst == nil && v != nil {
		c := *v
		*dst = &c
	}
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func clonePayment(p *domain.Payment) *domain.Payment {
	c := *p
	c.Metadata = maps.Clone(p.Metadata)
	c.ContractRegistrationTxID = cloneStr(p.ContractRegistrationTxID)
	c.ConfirmationTxID = cloneStr(p.ConfirmationTxID)
	c.ObservedTxID = cloneStr(p.ObservedTxID)
	c.SettlementTxID = cloneStr(p.SettlementTxID)
	c.SettlementClaim = cloneStr(p.SettlementClaim)
	c.SettlementClaimedAt = cloneTime(p.SettlementClaimedAt)
	c.ErrorMessage = cloneStr(p.ErrorMessage)
	c.ConfirmedAt = cloneTime(p.ConfirmedAt)
	c.SettledAt = cloneTime(p.SettledAt)
	return &c
}
