package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/use-lumina/lumina/internal/config"
	"github.com/use-lumina/lumina/internal/domain"
	"github.com/use-lumina/lumina/internal/pkg/logger"
)

// TraceSource provides the span under analysis and its comparison set
type TraceSource interface {
	GetBySpan(ctx context.Context, traceID, spanID string) (*domain.Trace, error)
	GetRecentResponses(ctx context.Context, serviceName, endpoint string, limit int) ([]domain.ResponseSample, error)
	UpdateSemanticScore(ctx context.Context, traceID, spanID string, score float64) error
}

// AlertRaiser receives detected anomalies
type AlertRaiser interface {
	Raise(ctx context.Context, alert *domain.Alert) (bool, error)
}

// AnomalyService inspects a stored trace for cost spikes and quality
// drops, raising alerts through the alert pipeline.
type AnomalyService struct {
	traces    TraceSource
	baselines BaselineStore
	scorer    SemanticScorer
	alerts    AlertRaiser
	cfg       config.AnomalyConfig
	now       func() time.Time
}

// NewAnomalyService creates a new anomaly service. The semantic scorer is
// optional; detection falls back to trigram similarity alone when nil.
func NewAnomalyService(traces TraceSource, baselines BaselineStore, scorer SemanticScorer, alerts AlertRaiser, cfg config.AnomalyConfig) *AnomalyService {
	return &AnomalyService{
		traces:    traces,
		baselines: baselines,
		scorer:    scorer,
		alerts:    alerts,
		cfg:       cfg,
		now:       time.Now,
	}
}

// AnalyzeSpan runs all detectors against one stored span. A span that
// trips both the cost and quality detectors yields a single combined
// alert rather than two.
func (s *AnomalyService) AnalyzeSpan(ctx context.Context, traceID, spanID string) error {
	trace, err := s.traces.GetBySpan(ctx, traceID, spanID)
	if err != nil {
		return err
	}

	costFinding, err := s.detectCostSpike(ctx, trace)
	if err != nil {
		return err
	}

	qualityFinding, err := s.detectQualityDrop(ctx, trace)
	if err != nil {
		logger.Warn("quality detection failed",
			zap.String("trace_id", traceID),
			zap.String("span_id", spanID),
			zap.Error(err),
		)
		qualityFinding = nil
	}

	// Dedupe is per (trace, span, alert type). A redelivery that sees a
	// different finding combination than an earlier partial run (quality
	// check failed then, succeeds now) can add a row of another type for
	// the same span; consumers key on alert type, not on span alone.
	var alert *domain.Alert
	switch {
	case costFinding != nil && qualityFinding != nil:
		alert = s.combinedAlert(trace, costFinding, qualityFinding)
	case costFinding != nil:
		alert = costFinding
	case qualityFinding != nil:
		alert = qualityFinding
	default:
		return nil
	}

	created, err := s.alerts.Raise(ctx, alert)
	if err != nil {
		return err
	}
	if created {
		logger.Info("anomaly detected",
			zap.String("trace_id", trace.TraceID),
			zap.String("span_id", trace.SpanID),
			zap.String("type", string(alert.Type)),
			zap.String("severity", string(alert.Severity)),
		)
	}

	return nil
}

// detectCostSpike compares the span's cost against the endpoint baseline.
// No baseline means no verdict: new endpoints warm up silently.
func (s *AnomalyService) detectCostSpike(ctx context.Context, trace *domain.Trace) (*domain.Alert, error) {
	baseline, err := s.lookupBaseline(ctx, trace.ServiceName, trace.Endpoint)
	if err != nil {
		return nil, err
	}
	if baseline == nil {
		return nil, nil
	}

	reference := baseline.P95
	if s.cfg.CostBaselinePercentile == "p50" {
		reference = baseline.P50
	}
	if reference <= 0 {
		return nil, nil
	}

	threshold := reference * (1 + s.cfg.CostSpikeThresholdPercent/100)
	if trace.CostUSD <= threshold {
		return nil, nil
	}

	increase := (trace.CostUSD/reference - 1) * 100
	alert := s.newAlert(trace, domain.AlertTypeCostSpike)
	alert.Severity = costSeverity(trace.CostUSD / reference)
	alert.BaselineValue = &reference
	alert.CurrentValue = trace.CostUSD
	alert.Threshold = threshold
	alert.IncreasePct = &increase
	alert.Message = fmt.Sprintf(
		"Cost $%.4f is %.0f%% above the %s baseline ($%.4f) for %s %s",
		trace.CostUSD, increase, baseline.Window, reference, trace.ServiceName, trace.Endpoint,
	)
	return alert, nil
}

// costBaselineWindows orders the comparison windows by preference. The
// 24h window smooths daily cycles without going stale; the longer and
// shorter windows are fallbacks for endpoints that lack it.
var costBaselineWindows = []domain.BaselineWindow{
	domain.BaselineWindow24h,
	domain.BaselineWindow7d,
	domain.BaselineWindow1h,
}

// lookupBaseline returns the most preferred baseline available
func (s *AnomalyService) lookupBaseline(ctx context.Context, serviceName, endpoint string) (*domain.CostBaseline, error) {
	for _, window := range costBaselineWindows {
		baseline, err := s.baselines.Get(ctx, serviceName, endpoint, window)
		if err != nil {
			return nil, err
		}
		if baseline != nil {
			return baseline, nil
		}
	}
	return nil, nil
}

// detectQualityDrop compares the span's response against recent successful
// responses for the endpoint. A cheap trigram comparison decides outright
// unless the score lands near the threshold, in which case the semantic
// scorer breaks the tie.
func (s *AnomalyService) detectQualityDrop(ctx context.Context, trace *domain.Trace) (*domain.Alert, error) {
	if trace.Response == "" || trace.Status != domain.TraceStatusSuccess {
		return nil, nil
	}

	samples, err := s.traces.GetRecentResponses(ctx, trace.ServiceName, trace.Endpoint, s.cfg.QualityMinSamples*2)
	if err != nil {
		return nil, err
	}
	// Exclude the span itself from its own comparison set.
	references := make([]string, 0, len(samples))
	for _, sample := range samples {
		if sample.ResponseHash == trace.ResponseHash {
			continue
		}
		references = append(references, sample.Response)
	}
	if len(references) < s.cfg.QualityMinSamples {
		return nil, nil
	}

	score := BestSimilarity(trace.Response, references)

	// Near the decision boundary the trigram score is unreliable; blend in
	// the semantic scorer when one is configured.
	if s.scorer != nil && abs(score-s.cfg.QualityThreshold) <= s.cfg.QualityAmbiguityBand {
		semScore, err := s.scorer.Score(ctx, trace.Response, references)
		if err != nil {
			logger.Warn("semantic scorer unavailable, using trigram score",
				zap.String("trace_id", trace.TraceID),
				zap.Error(err),
			)
		} else {
			w := s.cfg.QualitySemanticWeight
			score = w*semScore + (1-w)*score
			if err := s.traces.UpdateSemanticScore(ctx, trace.TraceID, trace.SpanID, score); err != nil {
				logger.Warn("failed to persist semantic score",
					zap.String("trace_id", trace.TraceID),
					zap.Error(err),
				)
			}
		}
	}

	if score >= s.cfg.QualityThreshold {
		return nil, nil
	}

	threshold := s.cfg.QualityThreshold
	alert := s.newAlert(trace, domain.AlertTypeQualityDrop)
	alert.Severity = qualitySeverity(score, threshold)
	alert.CurrentValue = score
	alert.Threshold = threshold
	alert.Message = fmt.Sprintf(
		"Response similarity %.2f fell below %.2f for %s %s",
		score, threshold, trace.ServiceName, trace.Endpoint,
	)
	return alert, nil
}

// combinedAlert folds simultaneous cost and quality findings into one
// high-severity alert keyed on the cost numbers.
func (s *AnomalyService) combinedAlert(trace *domain.Trace, cost, quality *domain.Alert) *domain.Alert {
	alert := s.newAlert(trace, domain.AlertTypeCostAndQuality)
	alert.Severity = domain.AlertSeverityHigh
	alert.BaselineValue = cost.BaselineValue
	alert.CurrentValue = cost.CurrentValue
	alert.Threshold = cost.Threshold
	alert.IncreasePct = cost.IncreasePct
	alert.Message = fmt.Sprintf(
		"Cost spike and quality drop on %s %s: %s; %s",
		trace.ServiceName, trace.Endpoint, cost.Message, quality.Message,
	)
	return alert
}

func (s *AnomalyService) newAlert(trace *domain.Trace, alertType domain.AlertType) *domain.Alert {
	return &domain.Alert{
		ID:          uuid.New(),
		TraceID:     trace.TraceID,
		SpanID:      trace.SpanID,
		ServiceName: trace.ServiceName,
		Endpoint:    trace.Endpoint,
		Type:        alertType,
		Status:      domain.AlertStatusPending,
		CreatedAt:   s.now().UTC(),
	}
}

// costSeverity grades a cost spike by how far the value sits above the
// baseline.
func costSeverity(ratio float64) domain.AlertSeverity {
	switch {
	case ratio >= 3.0:
		return domain.AlertSeverityHigh
	case ratio >= 2.0:
		return domain.AlertSeverityMedium
	default:
		return domain.AlertSeverityLow
	}
}

// qualitySeverity grades a quality drop by how far the score sits below
// the threshold.
func qualitySeverity(score, threshold float64) domain.AlertSeverity {
	switch {
	case score <= threshold/3:
		return domain.AlertSeverityHigh
	case score <= threshold/1.5:
		return domain.AlertSeverityMedium
	default:
		return domain.AlertSeverityLow
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
