package handler

import (
	"net/http"
	"time"

	"settlement-gateway/config"
	"settlement-gateway/internal/adapter/http/middleware"
	"settlement-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	SettlementSvc  ports.SettlementService
	WebhookAdmin   ports.WebhookAdmin
	TokenSvc       ports.TokenService
	IdemCache      ports.IdempotencyCache // nil = Idempotency-Key replay disabled
	RateLimiter    ports.RateLimiter      // nil = rate limiting disabled
	RateLimit      config.RateLimitConfig
	HealthCheckers []ports.HealthChecker
	Metrics        http.Handler // nil = no /metrics route
	MaxBodyBytes   int64
	IdempotencyTTL time.Duration
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	if deps.MaxBodyBytes > 0 {
		r.Use(middleware.MaxBodySize(deps.MaxBodyBytes))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	rl := func(group string, limit int64) gin.HandlerFunc {
		if deps.RateLimiter == nil || !deps.RateLimit.Enabled || limit <= 0 {
			return func(c *gin.Context) { c.Next() }
		}
		rule := middleware.RateLimitRule{Limit: limit, Window: deps.RateLimit.Window}
		return middleware.RateLimiter(deps.RateLimiter, group, rule, deps.Logger)
	}

	// Merchant API
	payments := NewPaymentHandler(deps.SettlementSvc, deps.IdemCache, deps.IdempotencyTTL, deps.Logger)
	v1 := r.Group("/api/v1/payments", middleware.MerchantContext())
	{
		v1.POST("", rl("create", deps.RateLimit.CreateLimit), payments.Create)
		v1.GET("", rl("read", deps.RateLimit.ReadLimit), payments.List)
		v1.GET("/:paymentId", rl("read", deps.RateLimit.ReadLimit), payments.Get)
		v1.POST("/:paymentId/cancel", rl("mutate", deps.RateLimit.MutateLimit), payments.Cancel)
		v1.POST("/:paymentId/refund", rl("mutate", deps.RateLimit.MutateLimit), payments.Refund)
	}

	// Service API
	internal := NewInternalHandler(deps.SettlementSvc, deps.WebhookAdmin)
	svc := r.Group("/internal/v1")
	{
		svc.POST("/deposits", middleware.ServiceAuth(deps.TokenSvc, deps.Logger, ports.RoleObserver), internal.NotifyDeposit)
		svc.POST("/payments/:paymentId/settle", middleware.ServiceAuth(deps.TokenSvc, deps.Logger), internal.Settle)
		svc.POST("/webhooks/:endpointId/stats/reset", middleware.ServiceAuth(deps.TokenSvc, deps.Logger), internal.ResetWebhookStats)
	}

	return r
}
