package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumina_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lumina_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lumina_http_active_requests",
			Help: "Number of active HTTP requests",
		},
		[]string{"method"},
	)
)

// Metrics creates a Prometheus metrics middleware. Route paths are used as
// labels, so only registered routes should pass through it.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if HealthSkipper(c) {
			return c.Next()
		}

		start := time.Now()
		method := c.Method()

		httpActiveRequests.WithLabelValues(method).Inc()
		defer httpActiveRequests.WithLabelValues(method).Dec()

		err := c.Next()

		path := c.Route().Path
		httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Response().StatusCode())).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

		return err
	}
}
