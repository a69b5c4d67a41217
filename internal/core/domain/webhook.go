package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// EventType names a payment lifecycle notification.
type EventType string

const (
	EventPaymentCreated   EventType = "payment.created"
	EventPaymentConfirmed EventType = "payment.confirmed"
	EventPaymentSettled   EventType = "payment.settled"
	EventPaymentFailed    EventType = "payment.failed"
	EventPaymentExpired   EventType = "payment.expired"
	EventPaymentCancelled EventType = "payment.cancelled"
	EventPaymentRefunded  EventType = "payment.refunded"
)

// WebhookSettings controls delivery of one endpoint.
type WebhookSettings struct {
	Timeout       time.Duration   `json:"timeout"`
	RetryAttempts int             `json:"retryAttempts"`
	RetryDelays   []time.Duration `json:"retryDelays"`
}

// DelayBefore returns the wait before the given attempt (1-based). The last
// configured delay repeats once the schedule runs out.
func (s WebhookSettings) DelayBefore(attempt int) time.Duration {
	if attempt <= 1 || len(s.RetryDelays) == 0 {
		return 0
	}
	i := attempt - 2
	if i >= len(s.RetryDelays) {
		i = len(s.RetryDelays) - 1
	}
	return s.RetryDelays[i]
}

// DeliveryStats aggregates attempts for one endpoint. Counters only grow
// until an admin resets them.
type DeliveryStats struct {
	Total             int64      `json:"total"`
	Successful        int64      `json:"successful"`
	Failed            int64      `json:"failed"`
	LastFailureReason *string    `json:"lastFailureReason,omitempty"`
	LastDeliveryAt    *time.Time `json:"lastDeliveryAt,omitempty"`
}

// WebhookEndpoint is a merchant-registered receiver of payment events.
type WebhookEndpoint struct {
	ID         uuid.UUID       `json:"id"`
	MerchantID uuid.UUID       `json:"merchantId"`
	URL        string          `json:"url"`
	Events     []EventType     `json:"events"`
	SecretEnc  string          `json:"-"` // AES-GCM encrypted HMAC key
	Enabled    bool            `json:"enabled"`
	Settings   WebhookSettings `json:"settings"`
	Stats      DeliveryStats   `json:"deliveryStats"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Subscribes reports whether the endpoint wants events of type t. An empty
// event set subscribes to everything.
func (e *WebhookEndpoint) Subscribes(t EventType) bool {
	return e.Enabled && (len(e.Events) == 0 || slices.Contains(e.Events, t))
}

// DeliveryOutcome is what one attempt contributes to DeliveryStats.
type DeliveryOutcome struct {
	Success       bool
	FailureReason string
	At            time.Time
}

// WebhookDeliveryAttempt describes one POST of an event to an endpoint.
// Attempts are logged and aggregated, never stored.
type WebhookDeliveryAttempt struct {
	EventID    string
	EndpointID uuid.UUID
	PaymentID  string
	EventType  EventType
	Attempt    int
	StatusCode int
	Duration   time.Duration
	Err        error
}

// Succeeded reports whether the receiver acknowledged with a 2xx.
func (a WebhookDeliveryAttempt) Succeeded() bool {
	return a.Err == nil && a.StatusCode >= 200 && a.StatusCode < 300
}

// PaymentSnapshot is the payment view shared with merchants, in API
// responses and webhook bodies. Key material never appears here.
type PaymentSnapshot struct {
	PaymentID                string            `json:"paymentId"`
	MerchantID               string            `json:"merchantId"`
	Status                   PaymentStatus     `json:"status"`
	UniqueAddress            string            `json:"uniqueAddress"`
	Currency                 string            `json:"currency"`
	ExpectedAmount           int64             `json:"expectedAmount"`
	ReceivedAmount           int64             `json:"receivedAmount"`
	Description              string            `json:"description,omitempty"`
	Metadata                 map[string]string `json:"metadata,omitempty"`
	ExpiresAt                time.Time         `json:"expiresAt"`
	ContractRegistrationTxID *string           `json:"contractRegistrationTxId,omitempty"`
	ObservedTxID             *string           `json:"observedTxId,omitempty"`
	SettlementTxID           *string           `json:"settlementTxId,omitempty"`
	ErrorMessage             *string           `json:"errorMessage,omitempty"`
	CreatedAt                time.Time         `json:"createdAt"`
	UpdatedAt                time.Time         `json:"updatedAt"`
	ConfirmedAt              *time.Time        `json:"confirmedAt,omitempty"`
	SettledAt                *time.Time        `json:"settledAt,omitempty"`
}

// Snapshot returns the merchant-visible view of p.
func (p *Payment) Snapshot() PaymentSnapshot {
	return PaymentSnapshot{
		PaymentID:                p.PaymentID,
		MerchantID:               p.MerchantID.String(),
		Status:                   p.Status,
		UniqueAddress:            p.UniqueAddress,
		Currency:                 p.Currency,
		ExpectedAmount:           p.ExpectedAmount,
		ReceivedAmount:           p.ReceivedAmount,
		Description:              p.Description,
		Metadata:                 p.Metadata,
		ExpiresAt:                p.ExpiresAt,
		ContractRegistrationTxID: p.ContractRegistrationTxID,
		ObservedTxID:             p.ObservedTxID,
		SettlementTxID:           p.SettlementTxID,
		ErrorMessage:             p.ErrorMessage,
		CreatedAt:                p.CreatedAt,
		UpdatedAt:                p.UpdatedAt,
		ConfirmedAt:              p.ConfirmedAt,
		SettledAt:                p.SettledAt,
	}
}

// WebhookEvent is the JSON body POSTed to endpoints.
type WebhookEvent struct {
	EventID    string          `json:"eventId"`
	Type       EventType       `json:"type"`
	ID         string          `json:"id"`
	MerchantID string          `json:"merchantId"`
	Data       PaymentSnapshot `json:"data"`
	Timestamp  string          `json:"timestamp"`
	Livemode   bool            `json:"livemode"`
}
