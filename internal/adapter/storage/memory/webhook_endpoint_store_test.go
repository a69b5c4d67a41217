package memory

import (
	"context"
	"testing"
	"time"

	"settlement-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookEndpointStore_Stats(t *testing.T) {
	s := NewWebhookEndpointStore()
	ctx := context.Background()
	merchantID := uuid.New()
	ep := &domain.WebhookEndpoint{ID: uuid.New(), MerchantID: merchantID, URL: "http://example.test", Enabled: true}
	require.NoError(t, s.Create(ctx, ep))
	require.NoError(t, s.Create(ctx, &domain.WebhookEndpoint{ID: uuid.New(), MerchantID: uuid.New()}))

	list, err := s.ListByMerchant(ctx, merchantID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	at := time.Now().UTC()
	require.NoError(t, s.RecordDelivery(ctx, ep.ID, domain.DeliveryOutcome{Success: false, FailureReason: "HTTP 500", At: at}))
	require.NoError(t, s.RecordDelivery(ctx, ep.ID, domain.DeliveryOutcome{Success: true, At: at}))

	got, err := s.GetByID(ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Stats.Total)
	assert.Equal(t, int64(1), got.Stats.Successful)
	assert.Equal(t, int64(1), got.Stats.Failed)
	assert.Equal(t, "HTTP 500", *got.Stats.LastFailureReason)

	require.NoError(t, s.ResetStats(ctx, ep.ID))
	got, _ = s.GetByID(ctx, ep.ID)
	assert.Equal(t, domain.DeliveryStats{}, got.Stats)

	assert.Error(t, s.RecordDelivery(ctx, uuid.New(), domain.DeliveryOutcome{}))
	missing, err := s.GetByID(ctx, uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMerchantDirectory(t *testing.T) {
	id := uuid.New()
	d := NewMerchantDirectory(domain.Merchant{ID: id, SettlementAddress: "ST1", AcceptedCurrencies: []string{"sbtc"}, Active: true})

	m, err := d.GetMerchant(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.True(t, m.Accepts("sbtc"))

	m.AcceptedCurrencies[0] = "btc"
	again, _ := d.GetMerchant(context.Background(), id)
	assert.True(t, again.Accepts("sbtc"))

	missing, err := d.GetMerchant(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, missing)
}
