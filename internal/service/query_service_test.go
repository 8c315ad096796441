package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/use-lumina/lumina/internal/domain"
	apperrors "github.com/use-lumina/lumina/internal/pkg/errors"
)

// MockTraceReader mocks the trace reader
type MockTraceReader struct {
	mock.Mock
}

func (m *MockTraceReader) Query(ctx context.Context, filter domain.TraceFilter, limit, offset int) ([]domain.Trace, error) {
	args := m.Called(ctx, filter, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Trace), args.Error(1)
}

func (m *MockTraceReader) Count(ctx context.Context, filter domain.TraceFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTraceReader) GetBySpan(ctx context.Context, traceID, spanID string) (*domain.Trace, error) {
	args := m.Called(ctx, traceID, spanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Trace), args.Error(1)
}

func (m *MockTraceReader) Metrics(ctx context.Context, filter domain.TraceFilter) (*domain.TraceMetrics, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TraceMetrics), args.Error(1)
}

func (m *MockTraceReader) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func TestQueryService_ListTraces(t *testing.T) {
	ctx := context.Background()

	t.Run("applies default pagination", func(t *testing.T) {
		reader := new(MockTraceReader)
		svc := NewQueryService(reader)

		reader.On("Query", ctx, domain.TraceFilter{}, 50, 0).
			Return([]domain.Trace{{TraceID: "t1", SpanID: "s1"}}, nil)
		reader.On("Count", ctx, domain.TraceFilter{}).Return(int64(1), nil)

		list, err := svc.ListTraces(ctx, domain.TraceFilter{}, 0, -3)

		require.NoError(t, err)
		assert.Len(t, list.Traces, 1)
		assert.Equal(t, int64(1), list.TotalCount)
		assert.False(t, list.HasMore)
	})

	t.Run("clamps oversized limits", func(t *testing.T) {
		reader := new(MockTraceReader)
		svc := NewQueryService(reader)

		reader.On("Query", ctx, domain.TraceFilter{}, 1000, 0).
			Return([]domain.Trace{}, nil)
		reader.On("Count", ctx, domain.TraceFilter{}).Return(int64(0), nil)

		_, err := svc.ListTraces(ctx, domain.TraceFilter{}, 99999, 0)

		require.NoError(t, err)
		reader.AssertExpectations(t)
	})

	t.Run("reports more pages when the count exceeds the window", func(t *testing.T) {
		reader := new(MockTraceReader)
		svc := NewQueryService(reader)

		reader.On("Query", ctx, domain.TraceFilter{}, 2, 0).
			Return([]domain.Trace{{TraceID: "a"}, {TraceID: "b"}}, nil)
		reader.On("Count", ctx, domain.TraceFilter{}).Return(int64(10), nil)

		list, err := svc.ListTraces(ctx, domain.TraceFilter{}, 2, 0)

		require.NoError(t, err)
		assert.True(t, list.HasMore)
	})
}

func TestQueryService_GetTrace(t *testing.T) {
	ctx := context.Background()
	reader := new(MockTraceReader)
	svc := NewQueryService(reader)

	reader.On("GetBySpan", ctx, "missing", "span").
		Return(nil, apperrors.NotFound("trace"))

	_, err := svc.GetTrace(ctx, "missing", "span")

	assert.True(t, apperrors.IsNotFound(err))
}
