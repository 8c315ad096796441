package worker

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/use-lumina/lumina/internal/config"
	"github.com/use-lumina/lumina/internal/domain"
)

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

func retentionTask(t *testing.T, payload *RetentionCleanupPayload) *asynq.Task {
	t.Helper()
	task, err := NewRetentionCleanupTask(payload)
	require.NoError(t, err)
	return task
}

func TestRetentionWorker_ProcessTask(t *testing.T) {
	fixedNow := time.Date(2026, 3, 15, 3, 0, 0, 0, time.UTC)

	t.Run("deletes traces past the configured horizon", func(t *testing.T) {
		traces := new(MockTraceReader)
		traces.On("DeleteOlderThan", mock.Anything, fixedNow.AddDate(0, 0, -30)).Return(int64(1234), nil)

		w := NewRetentionWorker(zap.NewNop(), traces, config.RetentionConfig{Days: 30, Enabled: true})
		w.now = func() time.Time { return fixedNow }

		err := w.ProcessTask(context.Background(), retentionTask(t, &RetentionCleanupPayload{}))

		require.NoError(t, err)
		traces.AssertExpectations(t)
	})

	t.Run("payload override narrows the horizon", func(t *testing.T) {
		traces := new(MockTraceReader)
		traces.On("DeleteOlderThan", mock.Anything, fixedNow.AddDate(0, 0, -7)).Return(int64(0), nil)

		w := NewRetentionWorker(zap.NewNop(), traces, config.RetentionConfig{Days: 30, Enabled: true})
		w.now = func() time.Time { return fixedNow }

		err := w.ProcessTask(context.Background(), retentionTask(t, &RetentionCleanupPayload{RetentionDays: 7}))

		require.NoError(t, err)
		traces.AssertExpectations(t)
	})

	t.Run("disabled retention is a no-op", func(t *testing.T) {
		traces := new(MockTraceReader)

		w := NewRetentionWorker(zap.NewNop(), traces, config.RetentionConfig{Days: 30, Enabled: false})

		err := w.ProcessTask(context.Background(), retentionTask(t, &RetentionCleanupPayload{}))

		require.NoError(t, err)
		traces.AssertNotCalled(t, "DeleteOlderThan", mock.Anything, mock.Anything)
	})

	t.Run("delete failure is returned for retry", func(t *testing.T) {
		traces := new(MockTraceReader)
		traces.On("DeleteOlderThan", mock.Anything, mock.AnythingOfType("time.Time")).Return(int64(0), assert.AnError)

		w := NewRetentionWorker(zap.NewNop(), traces, config.RetentionConfig{Days: 30, Enabled: true})

		err := w.ProcessTask(context.Background(), retentionTask(t, &RetentionCleanupPayload{}))

		assert.Error(t, err)
	})
}
