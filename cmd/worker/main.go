package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/use-lumina/lumina/internal/config"
	"github.com/use-lumina/lumina/internal/pkg/database"
	"github.com/use-lumina/lumina/internal/pkg/logger"
	pgrepo "github.com/use-lumina/lumina/internal/repository/postgres"
	"github.com/use-lumina/lumina/internal/service"
	"github.com/use-lumina/lumina/internal/worker"
)

const semanticScoreTTL = 24 * time.Hour

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

	log.Info("starting worker service")

	// Initialize dependencies
	deps, cleanup, err := initWorkerDependencies(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize dependencies", zap.Error(err))
	}
	defer cleanup()

	// Create worker server
	workerServer, err := worker.NewServer(log, cfg, deps)
	if err != nil {
		log.Fatal("failed to create worker server", zap.Error(err))
	}

	// Start worker in a goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- workerServer.Start()
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("shutting down worker...")
		workerServer.Stop()
	case err := <-errCh:
		if err != nil {
			log.Error("worker server error", zap.Error(err))
		}
	}

	log.Info("worker stopped")
}

// initWorkerDependencies initializes dependencies for the worker
func initWorkerDependencies(cfg *config.Config, log *zap.Logger) (*worker.Dependencies, func(), error) {
	ctx := context.Background()

	if err := database.Migrate(cfg.Postgres); err != nil {
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	pgDB, err := database.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	redisDB, err := database.NewRedis(ctx, cfg.Redis)
	if err != nil {
		pgDB.Close()
		return nil, nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	// Initialize repositories
	traceRepo := pgrepo.NewTraceRepository(pgDB)
	baselineRepo := pgrepo.NewBaselineRepository(pgDB)
	alertRepo := pgrepo.NewAlertRepository(pgDB)

	// The dispatch publisher enqueues through its own client so alert rows
	// raised during analysis reach the dispatch queue without waiting for a
	// sweep cycle.
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	publisher := worker.NewPublisher(asynqClient, cfg.Alerting.MaxRetries)

	// Initialize services
	scorer := service.NewCachedSemanticScorer(
		service.TokenJaccardScorer{},
		database.NewCache(redisDB, semanticScoreTTL),
	)
	alertService := service.NewAlertService(alertRepo, publisher)
	anomalyService := service.NewAnomalyService(traceRepo, baselineRepo, scorer, alertService, cfg.Anomaly)
	notificationService := service.NewNotificationService(cfg.Alerting)
	baselineService := service.NewBaselineService(traceRepo, baselineRepo, cfg.Baseline)

	deps := &worker.Dependencies{
		AnomalyService:      anomalyService,
		AlertService:        alertService,
		NotificationService: notificationService,
		BaselineService:     baselineService,
		TraceReader:         traceRepo,
	}

	cleanup := func() {
		asynqClient.Close()
		redisDB.Close()
		pgDB.Close()
	}

	return deps, cleanup, nil
}
