package handler

import (
	"net/http"

	"settlement-gateway/internal/adapter/http/dto"
	"settlement-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// HealthCheck handles GET /health. Any failing dependency turns the answer
// into a 503.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := dto.HealthResponse{Status: "healthy", Checks: make(map[string]string, len(checkers))}
		code := http.StatusOK

		for _, checker := range checkers {
			if err := checker.Ping(c.Request.Context()); err != nil {
				resp.Checks[checker.Name()] = "unhealthy: " + err.Error()
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[checker.Name()] = "healthy"
		}

		c.JSON(code, resp)
	}
}
