package service

import (
	"time"

	"settlement-gateway/internal/core/domain"
	"settlement-gateway/internal/core/ports"
)

type nopMetrics struct{}

func (nopMetrics) Transition(domain.PaymentStatus, domain.PaymentStatus) {}
func (nopMetrics) Conflict(string) {}
func (nopMetrics) LedgerCall(string, string, time.Duration) {}
func (nopMetrics) WebhookAttempt(string, time.Duration) {}
func (nopMetrics) Reconciled(string, int) {}

func metricsOrNop(m ports.Metrics) ports.Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
