package service

import (
	"context"
	"time"

	"github.com/use-lumina/lumina/internal/domain"
)

// TraceReader provides read access to stored traces
type TraceReader interface {
	Query(ctx context.Context, filter domain.TraceFilter, limit, offset int) ([]domain.Trace, error)
	Count(ctx context.Context, filter domain.TraceFilter) (int64, error)
	GetBySpan(ctx context.Context, traceID, spanID string) (*domain.Trace, error)
	Metrics(ctx context.Context, filter domain.TraceFilter) (*domain.TraceMetrics, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 1000
)

// QueryService serves the trace read API
type QueryService struct {
	traces TraceReader
}

// NewQueryService creates a new query service
func NewQueryService(traces TraceReader) *QueryService {
	return &QueryService{traces: traces}
}

// ListTraces returns traces matching the filter with pagination. Limits
// are clamped to keep a single response bounded.
func (s *QueryService) ListTraces(ctx context.Context, filter domain.TraceFilter, limit, offset int) (*domain.TraceList, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	if offset < 0 {
		offset = 0
	}

	traces, err := s.traces.Query(ctx, filter, limit, offset)
	if err != nil {
		return nil, err
	}

	total, err := s.traces.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	if traces == nil {
		traces = []domain.Trace{}
	}

	return &domain.TraceList{
		Traces:     traces,
		TotalCount: total,
		HasMore:    int64(offset+len(traces)) < total,
	}, nil
}

// GetTrace returns a single span by identity
func (s *QueryService) GetTrace(ctx context.Context, traceID, spanID string) (*domain.Trace, error) {
	return s.traces.GetBySpan(ctx, traceID, spanID)
}

// GetMetrics returns aggregate metrics over the traces matching the filter
func (s *QueryService) GetMetrics(ctx context.Context, filter domain.TraceFilter) (*domain.TraceMetrics, error) {
	return s.traces.Metrics(ctx, filter)
}
