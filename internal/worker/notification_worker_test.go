package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/use-lumina/lumina/internal/config"
	"github.com/use-lumina/lumina/internal/domain"
	apperrors "github.com/use-lumina/lumina/internal/pkg/errors"
	"github.com/use-lumina/lumina/internal/service"
)

type MockAlertStore struct {
	mock.Mock
}

func (m *MockAlertStore) Create(ctx context.Context, alert *domain.Alert) (bool, error) {
	args := m.Called(ctx, alert)
	return args.Bool(0), args.Error(1)
}

func (m *MockAlertStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Alert, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Alert), args.Error(1)
}

func (m *MockAlertStore) List(ctx context.Context, filter domain.AlertFilter, limit, offset int) ([]domain.Alert, int64, error) {
	args := m.Called(ctx, filter, limit, offset)
	var alerts []domain.Alert
	if args.Get(0) != nil {
		alerts = args.Get(0).([]domain.Alert)
	}
	return alerts, args.Get(1).(int64), args.Error(2)
}

func (m *MockAlertStore) ListPending(ctx context.Context, limit int) ([]domain.Alert, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Alert), args.Error(1)
}

func (m *MockAlertStore) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockAlertStore) Acknowledge(ctx context.Context, id uuid.UUID, at time.Time) (*domain.Alert, error) {
	args := m.Called(ctx, id, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Alert), args.Error(1)
}

func (m *MockAlertStore) Resolve(ctx context.Context, id uuid.UUID, at time.Time) (*domain.Alert, error) {
	args := m.Called(ctx, id, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Alert), args.Error(1)
}

func dispatchTask(t *testing.T, alertID uuid.UUID) *asynq.Task {
	t.Helper()
	task, err := NewAlertDispatchTask(&AlertDispatchPayload{AlertID: alertID}, 3)
	require.NoError(t, err)
	return task
}

// newDispatchWorker wires a worker over the mock store with no webhooks
// configured, so delivery itself always succeeds.
func newDispatchWorker(store *MockAlertStore) *NotificationWorker {
	alerts := service.NewAlertService(store, nil)
	notifications := service.NewNotificationService(config.AlertingConfig{DispatchTimeoutSeconds: 5})
	return NewNotificationWorker(zap.NewNop(), alerts, notifications, 3)
}

func pendingAlert(id uuid.UUID) *domain.Alert {
	return &domain.Alert{
		ID:          id,
		TraceID:     "0af7651916cd43dd8448eb211c80319c",
		SpanID:      "b7ad6b7169203331",
		ServiceName: "checkout-api",
		Type:        domain.AlertTypeCostSpike,
		Severity:    domain.AlertSeverityHigh,
		Status:      domain.AlertStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestNotificationWorker_ProcessTask(t *testing.T) {
	t.Run("delivers pending alert and marks it sent", func(t *testing.T) {
		store := new(MockAlertStore)
		id := uuid.New()
		store.On("GetByID", mock.Anything, id).Return(pendingAlert(id), nil)
		store.On("MarkSent", mock.Anything, id, mock.AnythingOfType("time.Time")).Return(nil)

		w := newDispatchWorker(store)
		err := w.ProcessTask(context.Background(), dispatchTask(t, id))

		require.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("duplicate task for a sent alert is a no-op", func(t *testing.T) {
		store := new(MockAlertStore)
		id := uuid.New()
		alert := pendingAlert(id)
		alert.Status = domain.AlertStatusSent
		store.On("GetByID", mock.Anything, id).Return(alert, nil)

		w := newDispatchWorker(store)
		err := w.ProcessTask(context.Background(), dispatchTask(t, id))

		require.NoError(t, err)
		store.AssertNotCalled(t, "MarkSent", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing alert does not retry", func(t *testing.T) {
		store := new(MockAlertStore)
		id := uuid.New()
		store.On("GetByID", mock.Anything, id).Return(nil, apperrors.NotFound("alert"))

		w := newDispatchWorker(store)
		err := w.ProcessTask(context.Background(), dispatchTask(t, id))

		assert.NoError(t, err)
	})

	t.Run("store error is returned for retry", func(t *testing.T) {
		store := new(MockAlertStore)
		id := uuid.New()
		store.On("GetByID", mock.Anything, id).Return(nil, apperrors.StoreUnavailable(errors.New("alert lookup failed")))

		w := newDispatchWorker(store)
		err := w.ProcessTask(context.Background(), dispatchTask(t, id))

		assert.Error(t, err)
	})

	t.Run("malformed payload fails", func(t *testing.T) {
		store := new(MockAlertStore)
		w := newDispatchWorker(store)

		err := w.ProcessTask(context.Background(), asynq.NewTask(TypeAlertDispatch, []byte("not json")))

		assert.Error(t, err)
	})
}

func TestNotificationWorker_ProcessSweepTask(t *testing.T) {
	t.Run("delivers every stranded alert", func(t *testing.T) {
		store := new(MockAlertStore)
		first := pendingAlert(uuid.New())
		second := pendingAlert(uuid.New())
		store.On("ListPending", mock.Anything, alertSweepBatch).Return([]domain.Alert{*first, *second}, nil)
		store.On("MarkSent", mock.Anything, first.ID, mock.AnythingOfType("time.Time")).Return(nil)
		store.On("MarkSent", mock.Anything, second.ID, mock.AnythingOfType("time.Time")).Return(nil)

		w := newDispatchWorker(store)
		err := w.ProcessSweepTask(context.Background(), asynq.NewTask(TypeAlertSweep, nil))

		require.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("nothing pending is a no-op", func(t *testing.T) {
		store := new(MockAlertStore)
		store.On("ListPending", mock.Anything, alertSweepBatch).Return([]domain.Alert{}, nil)

		w := newDispatchWorker(store)
		err := w.ProcessSweepTask(context.Background(), asynq.NewTask(TypeAlertSweep, nil))

		assert.NoError(t, err)
		store.AssertNotCalled(t, "MarkSent", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("list failure is returned for retry", func(t *testing.T) {
		store := new(MockAlertStore)
		store.On("ListPending", mock.Anything, alertSweepBatch).Return(nil, apperrors.StoreUnavailable(errors.New("alert listing failed")))

		w := newDispatchWorker(store)
		err := w.ProcessSweepTask(context.Background(), asynq.NewTask(TypeAlertSweep, nil))

		assert.Error(t, err)
	})
}
