package handler

import (
	"github.com/dafibh/fortuna/fortuna-engine/internal/middleware"
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(e *echo.Echo, cronSecret string, rateLimiter *middleware.RateLimiter, processorHandler *RecurringProcessorHandler) {
	// API version 1
	api := e.Group("/api/v1")

	// Internal trigger routes (shared secret, rate limited per client IP)
	internal := api.Group("/internal")
	internal.Use(middleware.RateLimitMiddleware(rateLimiter))
	internal.Use(middleware.CronSecretAuth(cronSecret))
	internal.POST("/recurring/process", processorHandler.ProcessDue)
}
