package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/use-lumina/lumina/internal/pkg/errors"
	"github.com/use-lumina/lumina/internal/service"
)

// TypeTraceAnalyze is the task type for per-span anomaly analysis
const TypeTraceAnalyze = "trace:analyze"

// TraceAnalyzePayload is the payload for trace analysis tasks
type TraceAnalyzePayload struct {
	TraceID string `json:"trace_id"`
	SpanID  string `json:"span_id"`
}

// NewTraceAnalyzeTask creates a trace analysis task
func NewTraceAnalyzeTask(payload *TraceAnalyzePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trace analyze payload: %w", err)
	}
	return asynq.NewTask(TypeTraceAnalyze, data, asynq.MaxRetry(3), asynq.Timeout(2*time.Minute)), nil
}

// AnomalyWorker runs detectors against freshly stored spans
type AnomalyWorker struct {
	logger  *zap.Logger
	anomaly *service.AnomalyService
}

// NewAnomalyWorker creates a new anomaly worker
func NewAnomalyWorker(logger *zap.Logger, anomaly *service.AnomalyService) *AnomalyWorker {
	return &AnomalyWorker{
		logger:  logger,
		anomaly: anomaly,
	}
}

// ProcessTask processes a trace analysis task
func (w *AnomalyWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload TraceAnalyzePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal trace analyze payload: %w", err)
	}

	err := w.anomaly.AnalyzeSpan(ctx, payload.TraceID, payload.SpanID)
	if err != nil {
		// The span may have been removed by retention between enqueue and
		// processing; retrying will not bring it back.
		if errors.IsNotFound(err) {
			w.logger.Debug("span no longer exists, skipping analysis",
				zap.String("trace_id", payload.TraceID),
				zap.String("span_id", payload.SpanID),
			)
			return nil
		}
		return err
	}

	return nil
}
