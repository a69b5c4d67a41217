package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"settlement-gateway/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus_Counters(t *testing.T) {
	m := New(nil)

	m.Transition(domain.PaymentStatusPending, domain.PaymentStatusConfirmed)
	m.Transition(domain.PaymentStatusPending, domain.PaymentStatusConfirmed)
	m.Transition(domain.PaymentStatusConfirmed, domain.PaymentStatusSettled)
	m.Conflict("settle")
	m.Reconciled("expired", 3)
	m.Reconciled("settled", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("pending", "confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("confirmed", "settled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflicts.WithLabelValues("settle")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.reconciled.WithLabelValues("expired")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.reconciled), "zero batches add no series")
}

func TestPrometheus_Histograms(t *testing.T) {
	m := New(nil)

	m.LedgerCall("register-payment", "ok", 120*time.Millisecond)
	m.LedgerCall("register-payment", "unavailable", 2*time.Second)
	m.WebhookAttempt("success", 40*time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(m.ledgerCalls))
	assert.Equal(t, 1, testutil.CollectAndCount(m.webhooks))
}

func TestPrometheus_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Conflict("confirm")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `settlement_cas_conflicts_total{op="confirm"} 1`)
}
