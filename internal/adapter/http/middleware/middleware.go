package middleware

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"settlement-gateway/internal/core/ports"
	"settlement-gateway/pkg/apperror"
	"settlement-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// HeaderMerchantID carries the merchant identity asserted by the
	// upstream API gateway.
	HeaderMerchantID = "X-Merchant-ID"
	HeaderRequestID  = "X-Request-ID"

	// Context keys
	CtxMerchantID   = "merchant_id"
	CtxServiceClaim = "service_claims"
)

// Service token roles.
const (
	RoleObserver = ports.RoleObserver
	RoleAdmin    = ports.RoleAdmin
)

// RequestID propagates X-Request-ID, minting one when the caller sent none.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(response.RequestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// MerchantContext resolves the calling merchant from HeaderMerchantID.
func MerchantContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderMerchantID))
		if raw == "" {
			response.Error(c, apperror.ErrMissingMerchant())
			c.Abort()
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Error(c, apperror.ErrMissingMerchant())
			c.Abort()
			return
		}
		c.Set(CtxMerchantID, id)
		c.Next()
	}
}

// ServiceAuth validates a bearer service token and requires one of roles.
// Admin tokens pass every role check.
func ServiceAuth(tokenSvc ports.TokenService, log zerolog.Logger, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || tokenStr == "" {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		claims, err := tokenSvc.Validate(tokenStr)
		if err != nil {
			log.Debug().Err(err).Msg("service token rejected")
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}
		if claims.Role != RoleAdmin && !slices.Contains(roles, claims.Role) {
			log.Warn().Str("subject", claims.Subject).Str("role", claims.Role).
				Str("path", c.FullPath()).Msg("service token lacks role")
			response.Error(c, apperror.ErrForbidden())
			c.Abort()
			return
		}

		c.Set(CtxServiceClaim, claims)
		c.Next()
	}
}

// RequestLogger logs every HTTP request once it completes.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("request_id", c.GetString(response.RequestIDKey)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery turns a handler panic into a SYS_001 response.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				response.Error(c, apperror.InternalError(nil))
				c.Abort()
			}
		}()
		c.Next()
	}
}
