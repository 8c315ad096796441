package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// LoggerConfig configures the logger middleware
type LoggerConfig struct {
	// Logger instance
	Logger *zap.Logger
	// Skip function
	Skip func(*fiber.Ctx) bool
}

// DefaultLoggerConfig returns default logger config
func DefaultLoggerConfig(logger *zap.Logger) LoggerConfig {
	return LoggerConfig{
		Logger: logger,
		Skip:   HealthSkipper,
	}
}

// Logger creates a request logging middleware
func Logger(config LoggerConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if config.Skip != nil && config.Skip(c) {
			return c.Next()
		}

		start := time.Now()

		err := c.Next()

		fields := []zap.Field{
			zap.String("request_id", GetRequestID(c)),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}

		status := c.Response().StatusCode()
		switch {
		case status >= 500:
			config.Logger.Error("request completed", fields...)
		case status >= 400:
			config.Logger.Warn("request completed", fields...)
		default:
			config.Logger.Info("request completed", fields...)
		}

		return err
	}
}

// HealthSkipper skips logging for health check endpoints
func HealthSkipper(c *fiber.Ctx) bool {
	path := c.Path()
	return path == "/health" || path == "/healthz" || path == "/ready" || path == "/readyz" || path == "/metrics"
}
