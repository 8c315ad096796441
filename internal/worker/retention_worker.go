package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/use-lumina/lumina/internal/config"
	"github.com/use-lumina/lumina/internal/pkg/metrics"
	"github.com/use-lumina/lumina/internal/service"
)

// TypeRetentionCleanup is the task type for the daily retention job
const TypeRetentionCleanup = "retention:cleanup"

// RetentionCleanupPayload is the payload for retention tasks
type RetentionCleanupPayload struct {
	// RetentionDays overrides the configured retention when positive
	RetentionDays int `json:"retention_days,omitempty"`
}

// NewRetentionCleanupTask creates a retention cleanup task
func NewRetentionCleanupTask(payload *RetentionCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal retention payload: %w", err)
	}
	return asynq.NewTask(TypeRetentionCleanup, data, asynq.MaxRetry(3), asynq.Timeout(1*time.Hour)), nil
}

// RetentionWorker removes traces past the retention horizon. The delete is
// a single bounded statement keyed on the cutoff, so overlapping runs and
// retries are harmless.
type RetentionWorker struct {
	logger *zap.Logger
	traces service.TraceReader
	cfg    config.RetentionConfig
	now    func() time.Time
}

// NewRetentionWorker creates a new retention worker
func NewRetentionWorker(logger *zap.Logger, traces service.TraceReader, cfg config.RetentionConfig) *RetentionWorker {
	return &RetentionWorker{
		logger: logger,
		traces: traces,
		cfg:    cfg,
		now:    time.Now,
	}
}

// ProcessTask processes a retention cleanup task
func (w *RetentionWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if !w.cfg.Enabled {
		return nil
	}

	var payload RetentionCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal retention payload: %w", err)
	}

	days := w.cfg.Days
	if payload.RetentionDays > 0 {
		days = payload.RetentionDays
	}

	cutoff := w.now().UTC().AddDate(0, 0, -days)
	deleted, err := w.traces.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("retention cleanup failed: %w", err)
	}

	metrics.RecordRetentionDeleted(deleted)
	w.logger.Info("retention cleanup completed",
		zap.Time("cutoff", cutoff),
		zap.Int64("deleted", deleted),
	)

	return nil
}
