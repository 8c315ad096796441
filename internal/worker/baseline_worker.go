package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/use-lumina/lumina/internal/domain"
	"github.com/use-lumina/lumina/internal/service"
)

// TypeBaselineCompute is the task type for a baseline sweep over one window
const TypeBaselineCompute = "baseline:compute"

// BaselineComputePayload is the payload for baseline sweep tasks
type BaselineComputePayload struct {
	Window domain.BaselineWindow `json:"window"`
}

// NewBaselineComputeTask creates a baseline sweep task
func NewBaselineComputeTask(payload *BaselineComputePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal baseline compute payload: %w", err)
	}
	return asynq.NewTask(TypeBaselineCompute, data, asynq.MaxRetry(2), asynq.Timeout(30*time.Minute)), nil
}

// BaselineWorker recomputes cost baselines on a schedule
type BaselineWorker struct {
	logger    *zap.Logger
	baselines *service.BaselineService
}

// NewBaselineWorker creates a new baseline worker
func NewBaselineWorker(logger *zap.Logger, baselines *service.BaselineService) *BaselineWorker {
	return &BaselineWorker{
		logger:    logger,
		baselines: baselines,
	}
}

// ProcessTask processes a baseline sweep task
func (w *BaselineWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload BaselineComputePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal baseline compute payload: %w", err)
	}
	if !payload.Window.Valid() {
		return fmt.Errorf("unknown baseline window %q", payload.Window)
	}

	report, err := w.baselines.Sweep(ctx, payload.Window)
	if err != nil {
		return err
	}

	w.logger.Info("baseline sweep report",
		zap.String("window", string(report.Window)),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", report.Errors),
	)

	return nil
}
