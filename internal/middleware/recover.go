package middleware

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SentryConfig holds Sentry-specific configuration
type SentryConfig struct {
	DSN          string
	Environment  string
	Release      string
	Debug        bool
	SampleRate   float64
	FlushTimeout time.Duration
}

// InitSentry initializes the Sentry SDK. A blank DSN disables reporting.
func InitSentry(config SentryConfig) error {
	if config.DSN == "" {
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              config.DSN,
		Environment:      config.Environment,
		Release:          config.Release,
		Debug:            config.Debug,
		SampleRate:       config.SampleRate,
		AttachStacktrace: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Sentry: %w", err)
	}

	return nil
}

// FlushSentry flushes any buffered events to Sentry
func FlushSentry(timeout time.Duration) {
	sentry.Flush(timeout)
}

// RecoverWithSentry creates a panic recovery middleware that reports to
// Sentry when enabled.
func RecoverWithSentry(logger *zap.Logger, sentryEnabled bool) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		var hub *sentry.Hub
		if sentryEnabled {
			hub = sentry.CurrentHub().Clone()
			hub.Scope().SetTag("request_id", GetRequestID(c))
		}

		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()

				var panicErr error
				switch v := r.(type) {
				case error:
					panicErr = v
				default:
					panicErr = fmt.Errorf("%v", v)
				}

				logger.Error("panic recovered",
					zap.Error(panicErr),
					zap.String("path", c.Path()),
					zap.String("method", c.Method()),
					zap.String("stack", string(stack)),
					zap.String("request_id", GetRequestID(c)),
				)

				if sentryEnabled && hub != nil {
					hub.Scope().SetExtra("path", c.Path())
					hub.Scope().SetExtra("method", c.Method())
					hub.Scope().SetLevel(sentry.LevelFatal)
					hub.RecoverWithContext(c.Context(), r)
					hub.Flush(2 * time.Second)
				}

				err = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error":      "Internal Server Error",
					"message":    "An unexpected error occurred",
					"request_id": GetRequestID(c),
				})
			}
		}()

		return c.Next()
	}
}

// CaptureError reports an error to Sentry from a Fiber context
func CaptureError(c *fiber.Ctx, err error) {
	hub := sentry.CurrentHub()
	hub.Scope().SetExtra("path", c.Path())
	hub.Scope().SetExtra("method", c.Method())
	hub.Scope().SetTag("request_id", GetRequestID(c))
	hub.CaptureException(err)
}
