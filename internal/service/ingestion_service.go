package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/use-lumina/lumina/internal/domain"
	"github.com/use-lumina/lumina/internal/otlp"
	apperrors "github.com/use-lumina/lumina/internal/pkg/errors"
	"github.com/use-lumina/lumina/internal/pkg/logger"
	"github.com/use-lumina/lumina/internal/pkg/metrics"
)

// TraceWriter persists canonical traces. All methods must be safe for
// concurrent use.
type TraceWriter interface {
	// InsertBatch upserts traces keyed on (trace_id, span_id).
	InsertBatch(ctx context.Context, traces []domain.Trace) error
}

// AnalysisPublisher hands accepted spans to the asynchronous analysis
// pipeline. Publishing is best effort: a failure must never surface to the
// ingest caller.
type AnalysisPublisher interface {
	PublishAnalyze(traceID, spanID string) error
}

// IngestionService handles the OTLP ingest path: parse, transform, quota
// check, durable write, then asynchronous analysis. The durable write is
// the only step allowed to fail a request after parsing succeeds.
type IngestionService struct {
	transformer *TransformService
	writer      TraceWriter
	quota       *RateLimitService
	publisher   AnalysisPublisher
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(
	transformer *TransformService,
	writer TraceWriter,
	quota *RateLimitService,
	publisher AnalysisPublisher,
) *IngestionService {
	return &IngestionService{
		transformer: transformer,
		writer:      writer,
		quota:       quota,
		publisher:   publisher,
	}
}

// Ingest processes one OTLP/JSON export payload and returns the number of
// spans accepted.
func (s *IngestionService) Ingest(ctx context.Context, payload []byte) (int, error) {
	spans, err := otlp.Parse(payload)
	if err != nil {
		return 0, err
	}
	if len(spans) == 0 {
		return 0, nil
	}

	if err := s.quota.Check(ctx); err != nil {
		return 0, err
	}

	traces := s.transformer.TransformBatch(spans)

	start := time.Now()
	if err := s.writer.InsertBatch(ctx, traces); err != nil {
		logger.Error("trace store write failed",
			zap.Int("count", len(traces)),
			zap.Error(err),
		)
		return 0, apperrors.StoreUnavailable(err)
	}

	// Quota accounting and analysis publishing run detached: the request
	// is answered at durable-write time, and a degraded counter store or
	// broker must not add its timeouts to the response.
	go s.afterWrite(traces)

	logger.Debug("ingested trace batch",
		zap.Int("count", len(traces)),
		zap.Duration("write_latency", time.Since(start)),
	)

	return len(traces), nil
}

// sideEffectTimeout bounds the detached post-write work
const sideEffectTimeout = 10 * time.Second

// afterWrite counts the batch against the quota and enqueues each span
// for analysis. Both are best effort; failures are logged and surfaced
// through the degraded-dependency metrics only.
func (s *IngestionService) afterWrite(traces []domain.Trace) {
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()

	s.quota.Record(ctx, len(traces))

	for _, trace := range traces {
		metrics.RecordSpansIngested(string(trace.Environment), 1)
		if s.publisher == nil {
			continue
		}
		if err := s.publisher.PublishAnalyze(trace.TraceID, trace.SpanID); err != nil {
			logger.Warn("failed to enqueue trace analysis",
				zap.String("trace_id", trace.TraceID),
				zap.String("span_id", trace.SpanID),
				zap.Error(err),
			)
			metrics.RecordOptionalInfraFailure("task_queue")
		}
	}
}
