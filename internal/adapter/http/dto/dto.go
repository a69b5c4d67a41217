package dto

import "settlement-gateway/internal/core/domain"

// CreatePaymentRequest is the body of POST /api/v1/payments.
type CreatePaymentRequest struct {
	Amount      int64             `json:"amount" binding:"required,gt=0"`
	Currency    string            `json:"currency" binding:"required,currency"`
	Description string            `json:"description,omitempty" binding:"max=500"`
	Metadata    map[string]string `json:"metadata,omitempty" binding:"max=20,dive,keys,max=64,endkeys,max=500"`
	// ExpiresIn is the payment window in seconds; zero selects the default.
	// The 30-day cap keeps the conversion to time.Duration from overflowing;
	// the configured maximum is enforced by the service.
	ExpiresIn int64 `json:"expiresIn,omitempty" binding:"gte=0,lte=2592000"`
}

// ListPaymentsQuery is the query string of GET /api/v1/payments.
type ListPaymentsQuery struct {
	Page   int    `form:"page" binding:"omitempty,gte=1"`
	Limit  int    `form:"limit" binding:"omitempty,gte=1,lte=100"`
	Status string `form:"status" binding:"omitempty,oneof=pending confirmed settled refunded expired failed"`
}

// PaymentDetail is a payment together with its lifecycle timeline.
type PaymentDetail struct {
	*domain.Payment
	Timeline []domain.TimelineEntry `json:"timeline"`
}

// ReasonRequest is the optional body of cancel and refund calls.
type ReasonRequest struct {
	Reason string `json:"reason,omitempty" binding:"max=500"`
}

// DepositRequest is the chain observer's report of a deposit.
type DepositRequest struct {
	PaymentID      string `json:"paymentId" binding:"required,payment_id"`
	ObservedAmount int64  `json:"observedAmount" binding:"required,gt=0"`
	ObservedTxID   string `json:"observedTxId" binding:"required,txid"`
}

// HealthResponse reports each dependency's reachability.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
