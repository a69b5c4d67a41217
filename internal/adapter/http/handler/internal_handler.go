package handler

import (
	"settlement-gateway/internal/adapter/http/dto"
	"settlement-gateway/internal/core/domain"
	"settlement-gateway/internal/core/ports"
	"settlement-gateway/pkg/apperror"
	"settlement-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// InternalHandler serves the service-to-service endpoints used by the chain
// observer and operators.
type InternalHandler struct {
	svc      ports.SettlementService
	webhooks ports.WebhookAdmin
}

func NewInternalHandler(svc ports.SettlementService, webhooks ports.WebhookAdmin) *InternalHandler {
	return &InternalHandler{svc: svc, webhooks: webhooks}
}

// NotifyDeposit handles POST /internal/v1/deposits.
func (h *InternalHandler) NotifyDeposit(c *gin.Context) {
	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	p, err := h.svc.NotifyDeposit(c.Request.Context(), domain.DepositNotification{
		PaymentID:      req.PaymentID,
		ObservedAmount: req.ObservedAmount,
		ObservedTxID:   req.ObservedTxID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, p)
}

// Settle handles POST /internal/v1/payments/:paymentId/settle.
func (h *InternalHandler) Settle(c *gin.Context) {
	paymentID, ok := paymentIDParam(c)
	if !ok {
		return
	}
	p, err := h.svc.Settle(c.Request.Context(), paymentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, p)
}

// ResetWebhookStats handles POST /internal/v1/webhooks/:endpointId/stats/reset.
func (h *InternalHandler) ResetWebhookStats(c *gin.Context) {
	id, err := uuid.Parse(c.Param("endpointId"))
	if err != nil {
		response.Error(c, apperror.ErrNotFound("Webhook endpoint"))
		return
	}
	if err := h.webhooks.ResetStats(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"endpointId": id, "reset": true})
}
