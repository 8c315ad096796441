package main

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/use-lumina/lumina/internal/config"
	"github.com/use-lumina/lumina/internal/handler"
	"github.com/use-lumina/lumina/internal/middleware"
	"github.com/use-lumina/lumina/internal/pkg/database"
	pgrepo "github.com/use-lumina/lumina/internal/repository/postgres"
	"github.com/use-lumina/lumina/internal/service"
	"github.com/use-lumina/lumina/internal/worker"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	// Database connections
	Postgres *database.PostgresDB
	Redis    *database.RedisDB

	// Repositories
	TraceRepo    *pgrepo.TraceRepository
	BaselineRepo *pgrepo.BaselineRepository
	AlertRepo    *pgrepo.AlertRepository

	// Services
	TransformService *service.TransformService
	RateLimitService *service.RateLimitService
	IngestionService *service.IngestionService
	QueryService     *service.QueryService
	AlertService     *service.AlertService
	BaselineService  *service.BaselineService

	// Handlers
	HealthHandler *handler.HealthHandler
	OTELHandler   *handler.OTELHandler
	TracesHandler *handler.TracesHandler
	AlertsHandler *handler.AlertsHandler

	// Middleware
	AuthMiddleware *middleware.AuthMiddleware

	// Asynq client
	AsynqClient *asynq.Client
}

// initDependencies initializes all dependencies
func initDependencies(cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	ctx := context.Background()

	// Run schema migrations before opening the pool
	if err := database.Migrate(cfg.Postgres); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	pgDB, err := database.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	deps.Postgres = pgDB

	// Redis is not a hard dependency for the API: quota checks fail open,
	// score caching and analysis publishing are best effort. A down broker
	// at startup means ingestion runs without alert generation.
	redisDB, err := database.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable at startup, continuing degraded", zap.Error(err))
		redisDB = database.NewRedisClient(cfg.Redis)
	}
	deps.Redis = redisDB

	deps.TraceRepo = pgrepo.NewTraceRepository(pgDB)
	deps.BaselineRepo = pgrepo.NewBaselineRepository(pgDB)
	deps.AlertRepo = pgrepo.NewAlertRepository(pgDB)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	deps.AsynqClient = asynqClient

	publisher := worker.NewPublisher(asynqClient, cfg.Alerting.MaxRetries)

	deps.TransformService = service.NewTransformService()
	deps.RateLimitService = service.NewRateLimitService(redisDB, cfg.Quota)
	deps.IngestionService = service.NewIngestionService(
		deps.TransformService,
		deps.TraceRepo,
		deps.RateLimitService,
		publisher,
	)
	deps.QueryService = service.NewQueryService(deps.TraceRepo)
	deps.AlertService = service.NewAlertService(deps.AlertRepo, publisher)
	deps.BaselineService = service.NewBaselineService(deps.TraceRepo, deps.BaselineRepo, cfg.Baseline)

	deps.HealthHandler = handler.NewHealthHandler(pgDB.Pool, redisDB.Client, appVersion)
	deps.OTELHandler = handler.NewOTELHandler(deps.IngestionService, logger)
	deps.TracesHandler = handler.NewTracesHandler(deps.QueryService, logger)
	deps.AlertsHandler = handler.NewAlertsHandler(deps.AlertService, logger)

	deps.AuthMiddleware = middleware.NewAuthMiddleware(cfg.Auth)

	return deps, nil
}

// Close closes all dependencies
func (d *Dependencies) Close() {
	if d.AsynqClient != nil {
		d.AsynqClient.Close()
	}
	if d.Redis != nil {
		d.Redis.Close()
	}
	if d.Postgres != nil {
		d.Postgres.Close()
	}
}
