package main

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes registers all HTTP routes
func registerRoutes(app *fiber.App, deps *Dependencies) {
	// Health check routes (no auth required)
	deps.HealthHandler.RegisterRoutes(app)

	// Prometheus scrape endpoint
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Authenticated API surface
	v1 := app.Group("/v1")
	v1.Use(deps.AuthMiddleware.RequireAuth())
	{
		// OTLP/HTTP JSON ingestion
		v1.Post("/traces", deps.OTELHandler.ExportTraces)

		// Trace queries
		v1.Get("/traces", deps.TracesHandler.ListTraces)
		v1.Get("/traces/metrics", deps.TracesHandler.GetMetrics)
		v1.Get("/traces/:traceId/spans/:spanId", deps.TracesHandler.GetTrace)

		// Alerts
		v1.Get("/alerts", deps.AlertsHandler.ListAlerts)
		v1.Get("/alerts/:alertId", deps.AlertsHandler.GetAlert)
		v1.Post("/alerts/:alertId/acknowledge", deps.AlertsHandler.AcknowledgeAlert)
		v1.Post("/alerts/:alertId/resolve", deps.AlertsHandler.ResolveAlert)
	}
}
