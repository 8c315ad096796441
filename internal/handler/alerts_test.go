package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/use-lumina/lumina/internal/domain"
	apperrors "github.com/use-lumina/lumina/internal/pkg/errors"
	"github.com/use-lumina/lumina/internal/service"
)

// MockAlertStore mocks the alert store
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
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]domain.Alert), args.Get(1).(int64), args.Error(2)
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

func setupAlertsApp(store *MockAlertStore) *fiber.App {
	h := NewAlertsHandler(service.NewAlertService(store, nil), zap.NewNop())

	app := fiber.New()
	app.Get("/v1/alerts", h.ListAlerts)
	app.Get("/v1/alerts/:alertId", h.GetAlert)
	app.Post("/v1/alerts/:alertId/acknowledge", h.AcknowledgeAlert)
	app.Post("/v1/alerts/:alertId/resolve", h.ResolveAlert)
	return app
}

func testAlert(status domain.AlertStatus) *domain.Alert {
	return &domain.Alert{
		ID:       uuid.New(),
		TraceID:  "trace-1",
		SpanID:   "span-1",
		Type:     domain.AlertTypeCostSpike,
		Severity: domain.AlertSeverityHigh,
		Status:   status,
	}
}

func TestAlertsHandler_ListAlerts(t *testing.T) {
	t.Run("returns matching alerts", func(t *testing.T) {
		store := new(MockAlertStore)
		store.On("List", mock.Anything, mock.MatchedBy(func(f domain.AlertFilter) bool {
			return f.Severity != nil && *f.Severity == domain.AlertSeverityHigh
		}), 50, 0).Return([]domain.Alert{*testAlert(domain.AlertStatusPending)}, int64(1), nil)
		app := setupAlertsApp(store)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/alerts?severity=HIGH", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var list domain.AlertList
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
		assert.Len(t, list.Alerts, 1)
	})

	t.Run("returns 500 when the store fails", func(t *testing.T) {
		store := new(MockAlertStore)
		store.On("List", mock.Anything, mock.Anything, 50, 0).
			Return(nil, int64(0), assert.AnError)
		app := setupAlertsApp(store)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/alerts", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}

func TestAlertsHandler_GetAlert(t *testing.T) {
	t.Run("returns the alert", func(t *testing.T) {
		store := new(MockAlertStore)
		alert := testAlert(domain.AlertStatusPending)
		store.On("GetByID", mock.Anything, alert.ID).Return(alert, nil)
		app := setupAlertsApp(store)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/alerts/"+alert.ID.String(), nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("returns 400 for a malformed id", func(t *testing.T) {
		app := setupAlertsApp(new(MockAlertStore))

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/alerts/not-a-uuid", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("returns 404 for an unknown alert", func(t *testing.T) {
		store := new(MockAlertStore)
		id := uuid.New()
		store.On("GetByID", mock.Anything, id).Return(nil, apperrors.NotFound("alert"))
		app := setupAlertsApp(store)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/alerts/"+id.String(), nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestAlertsHandler_Lifecycle(t *testing.T) {
	t.Run("acknowledge returns the updated alert", func(t *testing.T) {
		store := new(MockAlertStore)
		alert := testAlert(domain.AlertStatusAcknowledged)
		store.On("Acknowledge", mock.Anything, alert.ID, mock.AnythingOfType("time.Time")).
			Return(alert, nil)
		app := setupAlertsApp(store)

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/v1/alerts/"+alert.ID.String()+"/acknowledge", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var got domain.Alert
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, domain.AlertStatusAcknowledged, got.Status)
	})

	t.Run("resolve returns the updated alert", func(t *testing.T) {
		store := new(MockAlertStore)
		alert := testAlert(domain.AlertStatusResolved)
		store.On("Resolve", mock.Anything, alert.ID, mock.AnythingOfType("time.Time")).
			Return(alert, nil)
		app := setupAlertsApp(store)

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/v1/alerts/"+alert.ID.String()+"/resolve", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var got domain.Alert
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, domain.AlertStatusResolved, got.Status)
	})

	t.Run("resolve of an unknown alert returns 404", func(t *testing.T) {
		store := new(MockAlertStore)
		id := uuid.New()
		store.On("Resolve", mock.Anything, id, mock.AnythingOfType("time.Time")).
			Return(nil, apperrors.NotFound("alert"))
		app := setupAlertsApp(store)

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/v1/alerts/"+id.String()+"/resolve", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
