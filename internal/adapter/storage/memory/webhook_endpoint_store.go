package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"settlement-gateway/internal/core/domain"

	"github.com/google/uuid"
)

// WebhookEndpointStore implements ports.WebhookEndpointRepository.
type WebhookEndpointStore struct {
	mu        sync.Mutex
	endpoints map[uuid.UUID]*domain.WebhookEndpoint
}

func NewWebhookEndpointStore() *WebhookEndpointStore {
	return &WebhookEndpointStore{endpoints: make(map[uuid.UUID]*domain.WebhookEndpoint)}
}

func (s *WebhookEndpointStore) Create(_ context.Context, ep *domain.WebhookEndpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.endpoints[ep.ID]; exists {
		return fmt.Errorf("webhook endpoint %s already exists", ep.ID)
	}
	s.endpoints[ep.ID] = cloneEndpoint(ep)
	return nil
}

func (s *WebhookEndpointStore) GetByID(_ context.Context, id uuid.UUID) (*domain.WebhookEndpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ep, ok := s.endpoints[id]
	if !ok {
		return nil, nil
	}
	return cloneEndpoint(ep), nil
}

func (s *WebhookEndpointStore) ListByMerchant(_ context.Context, merchantID uuid.UUID) ([]domain.WebhookEndpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.WebhookEndpoint
	for _, ep := range s.endpoints {
		if ep.MerchantID == merchantID {
			out = append(out, *cloneEndpoint(ep))
		}
	}
	return out, nil
}

func (s *WebhookEndpointStore) RecordDelivery(_ context.Context, id uuid.UUID, outcome domain.DeliveryOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ep, ok := s.endpoints[id]
	if !ok {
		return fmt.Errorf("webhook endpoint %s not found", id)
	}
	ep.Stats.Total++
	if outcome.Success {
		ep.Stats.Successful++
	} else {
		ep.Stats.Failed++
		reason := outcome.FailureReason
		ep.Stats.LastFailureReason = &reason
	}
	at := outcome.At
	ep.Stats.LastDeliveryAt = &at
	return nil
}

func (s *WebhookEndpointStore) ResetStats(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ep, ok := s.endpoints[id]
	if !ok {
		return fmt.Errorf("webhook endpoint %s not found", id)
	}
	ep.Stats = domain.DeliveryStats{}
	return nil
}

func cloneEndpoint(ep *domain.WebhookEndpoint) *domain.WebhookEndpoint {
	c := *ep
	c.Events = slices.Clone(ep.Events)
	c.Settings.RetryDelays = slices.Clone(ep.Settings.RetryDelays)
	c.Stats.LastFailureReason = cloneStr(ep.Stats.LastFailureReason)
	c.Stats.LastDeliveryAt = cloneTime(ep.Stats.LastDeliveryAt)
	return &c
}
