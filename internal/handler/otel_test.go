package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/use-lumina/lumina/internal/config"
	"github.com/use-lumina/lumina/internal/domain"
	"github.com/use-lumina/lumina/internal/pkg/database"
	"github.com/use-lumina/lumina/internal/service"
)

// MockTraceWriter mocks the durable trace store
type MockTraceWriter struct {
	mock.Mock
}

func (m *MockTraceWriter) InsertBatch(ctx context.Context, traces []domain.Trace) error {
	args := m.Called(ctx, traces)
	return args.Error(0)
}

func setupOTELApp(t *testing.T, writer *MockTraceWriter, quota config.QuotaConfig) *fiber.App {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	redisDB := &database.RedisDB{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { redisDB.Close() })

	ingestion := service.NewIngestionService(
		service.NewTransformService(),
		writer,
		service.NewRateLimitService(redisDB, quota),
		nil,
	)
	h := NewOTELHandler(ingestion, zap.NewNop())

	app := fiber.New()
	app.Post("/v1/traces", h.ExportTraces)
	return app
}

func exportBody() []byte {
	return []byte(`{
		"resourceSpans": [{
			"resource": {"attributes": [
				{"key": "service.name", "value": {"stringValue": "checkout-api"}}
			]},
			"scopeSpans": [{"spans": [{
				"traceId": "trace-1",
				"spanId": "span-1",
				"name": "POST /v1/chat",
				"status": {"code": 1}
			}]}]
		}]
	}`)
}

func TestOTELHandler_ExportTraces(t *testing.T) {
	quotaOff := config.QuotaConfig{Enabled: false}

	t.Run("accepts a valid export", func(t *testing.T) {
		writer := new(MockTraceWriter)
		writer.On("InsertBatch", mock.Anything, mock.Anything).Return(nil)
		app := setupOTELApp(t, writer, quotaOff)

		req := httptest.NewRequest(http.MethodPost, "/v1/traces", bytes.NewReader(exportBody()))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, float64(1), body["count"])
	})

	t.Run("returns 400 for a malformed payload", func(t *testing.T) {
		writer := new(MockTraceWriter)
		app := setupOTELApp(t, writer, quotaOff)

		req := httptest.NewRequest(http.MethodPost, "/v1/traces", bytes.NewReader([]byte(`{"resourceSpans": 42}`)))
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		writer.AssertNotCalled(t, "InsertBatch", mock.Anything, mock.Anything)
	})

	t.Run("returns 429 with quota details when over the limit", func(t *testing.T) {
		writer := new(MockTraceWriter)
		app := setupOTELApp(t, writer, config.QuotaConfig{Enabled: true, DailyTraceLimit: 0})

		req := httptest.NewRequest(http.MethodPost, "/v1/traces", bytes.NewReader(exportBody()))
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "0", body["limit"])
		assert.NotEmpty(t, body["resetTime"])
	})

	t.Run("returns 503 when the store is down", func(t *testing.T) {
		writer := new(MockTraceWriter)
		writer.On("InsertBatch", mock.Anything, mock.Anything).Return(assert.AnError)
		app := setupOTELApp(t, writer, quotaOff)

		req := httptest.NewRequest(http.MethodPost, "/v1/traces", bytes.NewReader(exportBody()))
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		raw, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(raw), "trace store unavailable")
	})
}
