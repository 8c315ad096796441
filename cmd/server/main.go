package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/use-lumina/lumina/internal/config"
	"github.com/use-lumina/lumina/internal/middleware"
	"github.com/use-lumina/lumina/internal/pkg/logger"
)

const appVersion = "0.1.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.Log
	defer logger.Sync()

	// Initialize Sentry if enabled
	sentryEnabled := cfg.Sentry.Enabled && cfg.Sentry.DSN != ""
	if sentryEnabled {
		sentryConfig := middleware.SentryConfig{
			DSN:          cfg.Sentry.DSN,
			Environment:  cfg.Sentry.Environment,
			Release:      "lumina@" + appVersion,
			SampleRate:   cfg.Sentry.SampleRate,
			FlushTimeout: 5 * time.Second,
		}
		if sentryConfig.Environment == "" {
			sentryConfig.Environment = cfg.Server.Env
		}

		if err := middleware.InitSentry(sentryConfig); err != nil {
			log.Error("failed to initialize Sentry", zap.Error(err))
			sentryEnabled = false
		} else {
			log.Info("Sentry initialized",
				zap.String("environment", sentryConfig.Environment),
			)
			defer middleware.FlushSentry(5 * time.Second)
		}
	}

	// Initialize dependencies
	deps, err := initDependencies(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize dependencies", zap.Error(err))
	}
	defer deps.Close()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:               "Lumina API",
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           120 * time.Second,
		BodyLimit:             16 * 1024 * 1024,
		DisableStartupMessage: cfg.IsProduction(),
		ErrorHandler:          errorHandler(log, sentryEnabled),
	})

	// Apply global middleware
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(middleware.DefaultLoggerConfig(log)))
	app.Use(middleware.RecoverWithSentry(log, sentryEnabled))
	app.Use(middleware.SimpleCORS())
	app.Use(middleware.Metrics())

	// Register routes
	registerRoutes(app, deps)

	// Start server
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Info("starting server", zap.String("addr", addr))
		if err := app.Listen(addr); err != nil {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}

	log.Info("server stopped")
}

// errorHandler creates a custom error handler
func errorHandler(log *zap.Logger, sentryEnabled bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		// Default to 500 Internal Server Error
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		// Check if it's a Fiber error
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
			message = e.Message
		}

		log.Error("request error",
			zap.Int("status", code),
			zap.String("error", err.Error()),
			zap.String("path", c.Path()),
			zap.String("method", c.Method()),
		)

		// Report to Sentry for 5xx errors
		if sentryEnabled && code >= 500 {
			middleware.CaptureError(c, err)
		}

		return c.Status(code).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    code,
				"message": message,
			},
		})
	}
}
