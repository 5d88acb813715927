package middleware

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
)

// InitMetrics builds the HTTP metrics middleware for serviceName.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	prom := fiberprometheus.New(serviceName)
	prom.SetSkipPaths([]string{"/metrics", "/health/live", "/health/ready"})
	return prom
}

// MetricsMiddleware returns the Fiber handler recording request metrics.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	return prom.Middleware
}
