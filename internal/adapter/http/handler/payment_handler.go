package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"settlement-gateway/internal/adapter/http/dto"
	"settlement-gateway/internal/adapter/http/middleware"
	"settlement-gateway/internal/core/domain"
	"settlement-gateway/internal/core/ports"
	"settlement-gateway/pkg/apperror"
	"settlement-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HeaderIdempotencyKey lets a merchant retry payment creation safely.
const HeaderIdempotencyKey = "Idempotency-Key"

// inflightTTL bounds how long a crashed request can hold its key.
const inflightTTL = time.Minute

// PaymentHandler serves the merchant-facing payment endpoints.
type PaymentHandler struct {
	svc    ports.SettlementService
	cache  ports.IdempotencyCache // nil disables Idempotency-Key replay
	ttl    time.Duration
	logger zerolog.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(svc ports.SettlementService, cache ports.IdempotencyCache, ttl time.Duration, log zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{svc: svc, cache: cache, ttl: ttl, logger: log}
}

// Create handles POST /api/v1/payments.
func (h *PaymentHandler) Create(c *gin.Context) {
	merchantID, ok := merchantFrom(c)
	if !ok {
		return
	}

	cacheKey := ""
	if key := c.GetHeader(HeaderIdempotencyKey); key != "" && h.cache != nil {
		if len(key) > 128 {
			response.Error(c, apperror.Validation("Idempotency-Key must be at most 128 characters"))
			return
		}
		cacheKey = fmt.Sprintf("create:%s:%s", merchantID, key)
		held, done := h.guard(c, cacheKey)
		if done {
			return
		}
		if held {
			defer h.release(c.Request.Context(), cacheKey)
		}
	}

	var req dto.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	p, err := h.svc.CreatePayment(c.Request.Context(), ports.CreatePaymentInput{
		MerchantID:  merchantID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
		Metadata:    req.Metadata,
		ExpiresIn:   time.Duration(req.ExpiresIn) * time.Second,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	body, err := json.Marshal(response.Envelope(c, p))
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	if cacheKey != "" {
		if err := h.cache.Set(c.Request.Context(), cacheKey, body, h.ttl); err != nil {
			h.logger.Warn().Err(err).Str("payment_id", p.PaymentID).Msg("idempotency store failed")
		}
	}
	response.Raw(c, http.StatusCreated, body)
}

// guard reserves cacheKey and replays a stored response. done means the
// response is already written. held means the caller owns the reservation
// and must release it. A failing cache lets the request through unguarded.
func (h *PaymentHandler) guard(c *gin.Context, cacheKey string) (held, done bool) {
	ctx := c.Request.Context()

	held, rerr := h.cache.Reserve(ctx, cacheKey, inflightTTL)
	if rerr != nil {
		h.logger.Warn().Err(rerr).Msg("idempotency reserve failed")
	}

	cached, gerr := h.cache.Get(ctx, cacheKey)
	switch {
	case gerr != nil:
		h.logger.Warn().Err(gerr).Msg("idempotency lookup failed")
	case cached != nil:
		if held {
			h.release(ctx, cacheKey)
		}
		c.Header("Idempotent-Replayed", "true")
		response.Raw(c, http.StatusCreated, cached)
		return false, true
	}

	if !held && rerr == nil {
		response.Error(c, apperror.ErrIdempotencyInProgress())
		return false, true
	}
	return held, false
}

func (h *PaymentHandler) release(ctx context.Context, cacheKey string) {
	if err := h.cache.Release(context.WithoutCancel(ctx), cacheKey); err != nil {
		h.logger.Warn().Err(err).Msg("idempotency release failed")
	}
}

// Get handles GET /api/v1/payments/:paymentId.
func (h *PaymentHandler) Get(c *gin.Context) {
	merchantID, ok := merchantFrom(c)
	if !ok {
		return
	}
	paymentID, ok := paymentIDParam(c)
	if !ok {
		return
	}

	p, err := h.svc.GetPayment(c.Request.Context(), merchantID, paymentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.PaymentDetail{Payment: p, Timeline: p.Timeline()})
}

// List handles GET /api/v1/payments.
func (h *PaymentHandler) List(c *gin.Context) {
	merchantID, ok := merchantFrom(c)
	if !ok {
		return
	}

	var q dto.ListPaymentsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	page, err := h.svc.ListPayments(c.Request.Context(), ports.ListPaymentsInput{
		MerchantID: merchantID,
		Status:     domain.PaymentStatus(q.Status),
		Page:       q.Page,
		Limit:      q.Limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, page)
}

// Cancel handles POST /api/v1/payments/:paymentId/cancel.
func (h *PaymentHandler) Cancel(c *gin.Context) {
	h.withReason(c, h.svc.CancelPayment)
}

// Refund handles POST /api/v1/payments/:paymentId/refund.
func (h *PaymentHandler) Refund(c *gin.Context) {
	h.withReason(c, h.svc.RefundPayment)
}

type reasonAction func(ctx context.Context, merchantID uuid.UUID, paymentID, reason string) (*domain.Payment, error)

func (h *PaymentHandler) withReason(c *gin.Context, action reasonAction) {
	merchantID, ok := merchantFrom(c)
	if !ok {
		return
	}
	paymentID, ok := paymentIDParam(c)
	if !ok {
		return
	}

	// The body is optional.
	var req dto.ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	p, err := action(c.Request.Context(), merchantID, paymentID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, p)
}

func merchantFrom(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(middleware.CtxMerchantID)
	if !ok {
		response.Error(c, apperror.ErrMissingMerchant())
		return uuid.Nil, false
	}
	return v.(uuid.UUID), true
}

func paymentIDParam(c *gin.Context) (string, bool) {
	id := c.Param("paymentId")
	if !dto.ValidPaymentID(id) {
		response.Error(c, apperror.ErrNotFound("Payment"))
		return "", false
	}
	return id, true
}
