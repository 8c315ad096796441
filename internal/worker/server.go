package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/use-lumina/lumina/internal/config"
	"github.com/use-lumina/lumina/internal/domain"
	"github.com/use-lumina/lumina/internal/service"
)

// Server is the background worker server. It processes analysis and
// dispatch tasks and schedules the periodic baseline, sweep, and
// retention jobs.
type Server struct {
	logger    *zap.Logger
	config    *config.Config
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	client    *asynq.Client
}

// Dependencies holds the services workers run against
type Dependencies struct {
	AnomalyService      *service.AnomalyService
	AlertService        *service.AlertService
	NotificationService *service.NotificationService
	BaselineService     *service.BaselineService
	TraceReader         service.TraceReader
}

// NewServer creates a new worker server
func NewServer(logger *zap.Logger, cfg *config.Config, deps *Dependencies) (*Server, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task processing failed",
					zap.String("type", task.Type()),
					zap.Error(err),
				)
			}),
			Logger: &asynqLogger{logger: logger},
		},
	)

	anomalyWorker := NewAnomalyWorker(logger, deps.AnomalyService)
	notificationWorker := NewNotificationWorker(logger, deps.AlertService, deps.NotificationService, cfg.Alerting.MaxRetries)
	baselineWorker := NewBaselineWorker(logger, deps.BaselineService)
	retentionWorker := NewRetentionWorker(logger, deps.TraceReader, cfg.Retention)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeTraceAnalyze, anomalyWorker.ProcessTask)
	mux.HandleFunc(TypeAlertDispatch, notificationWorker.ProcessTask)
	mux.HandleFunc(TypeAlertSweep, notificationWorker.ProcessSweepTask)
	mux.HandleFunc(TypeBaselineCompute, baselineWorker.ProcessTask)
	mux.HandleFunc(TypeRetentionCleanup, retentionWorker.ProcessTask)

	scheduler := asynq.NewScheduler(redisOpt, nil)
	client := asynq.NewClient(redisOpt)

	return &Server{
		logger:    logger,
		config:    cfg,
		server:    server,
		mux:       mux,
		scheduler: scheduler,
		client:    client,
	}, nil
}

// Start starts the worker server
func (s *Server) Start() error {
	if err := s.registerScheduledTasks(); err != nil {
		return fmt.Errorf("failed to register scheduled tasks: %w", err)
	}

	go func() {
		if err := s.scheduler.Run(); err != nil {
			s.logger.Error("scheduler stopped", zap.Error(err))
		}
	}()

	s.logger.Info("starting worker server",
		zap.Int("concurrency", s.config.Worker.Concurrency),
	)

	return s.server.Run(s.mux)
}

// Stop stops the worker server
func (s *Server) Stop() {
	s.server.Shutdown()
	s.scheduler.Shutdown()
	s.client.Close()
}

// Client returns the asynq client for enqueuing tasks
func (s *Server) Client() *asynq.Client {
	return s.client
}

// registerScheduledTasks registers periodic tasks with the scheduler
func (s *Server) registerScheduledTasks() error {
	// Short-window baselines refresh hourly; the long windows move slowly
	// and refresh every six hours.
	schedules := []struct {
		cron string
		task *asynq.Task
	}{
		{"0 * * * *", mustBaselineTask(domain.BaselineWindow1h)},
		{"0 */6 * * *", mustBaselineTask(domain.BaselineWindow24h)},
		{"0 */6 * * *", mustBaselineTask(domain.BaselineWindow7d)},
		{"*/5 * * * *", asynq.NewTask(TypeAlertSweep, []byte(`{}`))},
		{"0 3 * * *", mustRetentionTask()},
	}

	for _, entry := range schedules {
		if _, err := s.scheduler.Register(entry.cron, entry.task, asynq.Queue("low")); err != nil {
			return fmt.Errorf("failed to register %s: %w", entry.task.Type(), err)
		}
	}

	return nil
}

func mustBaselineTask(window domain.BaselineWindow) *asynq.Task {
	task, err := NewBaselineComputeTask(&BaselineComputePayload{Window: window})
	if err != nil {
		panic(err)
	}
	return task
}

func mustRetentionTask() *asynq.Task {
	task, err := NewRetentionCleanupTask(&RetentionCleanupPayload{})
	if err != nil {
		panic(err)
	}
	return task
}

// asynqLogger adapts zap.Logger to asynq.Logger
type asynqLogger struct {
	logger *zap.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Fatal(fmt.Sprint(args...))
}
