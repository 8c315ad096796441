package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/use-lumina/lumina/internal/config"
	"github.com/use-lumina/lumina/internal/domain"
	"github.com/use-lumina/lumina/internal/pkg/logger"
	"github.com/use-lumina/lumina/internal/pkg/metrics"
)

// CostSampleSource provides the observations a baseline is computed from.
// All methods must be safe for concurrent use.
type CostSampleSource interface {
	// ListEndpoints returns the distinct endpoints seen since the given time.
	ListEndpoints(ctx context.Context, since time.Time) ([]domain.EndpointKey, error)
	// GetCostSamples returns recent cost observations for one endpoint.
	GetCostSamples(ctx context.Context, serviceName, endpoint string, since time.Time, limit int) ([]domain.CostSample, error)
}

// BaselineStore persists computed baselines
type BaselineStore interface {
	Upsert(ctx context.Context, b domain.CostBaseline) error
	Get(ctx context.Context, serviceName, endpoint string, window domain.BaselineWindow) (*domain.CostBaseline, error)
	List(ctx context.Context, serviceName string) ([]domain.CostBaseline, error)
}

// BaselineService computes per-endpoint cost percentiles over rolling
// windows. Sweeps run on a schedule; detection reads whatever baseline the
// last sweep produced.
type BaselineService struct {
	samples   CostSampleSource
	baselines BaselineStore
	cfg       config.BaselineConfig
	now       func() time.Time
}

// NewBaselineService creates a new baseline service
func NewBaselineService(samples CostSampleSource, baselines BaselineStore, cfg config.BaselineConfig) *BaselineService {
	return &BaselineService{
		samples:   samples,
		baselines: baselines,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Sweep recomputes baselines for every active endpoint in one window. An
// endpoint that fails does not stop the sweep; its error is counted and the
// next endpoint is processed.
func (s *BaselineService) Sweep(ctx context.Context, window domain.BaselineWindow) (domain.SweepReport, error) {
	start := s.now()
	report := domain.SweepReport{Window: window}

	lookback := start.Add(-time.Duration(s.cfg.LookbackHours) * time.Hour)
	endpoints, err := s.samples.ListEndpoints(ctx, lookback)
	if err != nil {
		return report, err
	}

	for _, ep := range endpoints {
		updated, err := s.computeEndpoint(ctx, ep, window)
		switch {
		case err != nil:
			report.Errors++
			logger.Error("baseline computation failed",
				zap.String("service", ep.ServiceName),
				zap.String("endpoint", ep.Endpoint),
				zap.String("window", string(window)),
				zap.Error(err),
			)
		case updated:
			report.Updated++
		default:
			report.Skipped++
		}
	}

	metrics.RecordBaselineSweep(string(window), s.now().Sub(start), report.Updated, report.Skipped, report.Errors)
	logger.Info("baseline sweep completed",
		zap.String("window", string(window)),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", report.Errors),
	)

	return report, nil
}

// computeEndpoint recomputes one endpoint's baseline. Returns false without
// error when the endpoint has too few samples to be meaningful.
func (s *BaselineService) computeEndpoint(ctx context.Context, ep domain.EndpointKey, window domain.BaselineWindow) (bool, error) {
	since := s.now().Add(-window.Duration())
	samples, err := s.samples.GetCostSamples(ctx, ep.ServiceName, ep.Endpoint, since, s.cfg.MaxSamples)
	if err != nil {
		return false, err
	}

	if len(samples) < s.cfg.MinSamples {
		return false, nil
	}

	costs := make([]float64, len(samples))
	for i, sample := range samples {
		costs[i] = sample.CostUSD
	}
	sort.Float64s(costs)

	baseline := domain.CostBaseline{
		ServiceName: ep.ServiceName,
		Endpoint:    ep.Endpoint,
		Window:      window,
		P50:         percentile(costs, 50),
		P95:         percentile(costs, 95),
		P99:         percentile(costs, 99),
		SampleCount: len(costs),
		LastUpdated: s.now().UTC(),
	}

	if err := s.baselines.Upsert(ctx, baseline); err != nil {
		return false, err
	}

	return true, nil
}

// GetBaseline returns the stored baseline for one endpoint and window, or
// nil when none has been computed.
func (s *BaselineService) GetBaseline(ctx context.Context, serviceName, endpoint string, window domain.BaselineWindow) (*domain.CostBaseline, error) {
	return s.baselines.Get(ctx, serviceName, endpoint, window)
}

// ListBaselines returns stored baselines, optionally scoped to a service
func (s *BaselineService) ListBaselines(ctx context.Context, serviceName string) ([]domain.CostBaseline, error) {
	return s.baselines.List(ctx, serviceName)
}

// percentile computes the p-th percentile of sorted values using linear
// interpolation between the nearest ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100) * float64(len(sorted)-1)
	lower := int(rank)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := rank - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
