package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-lumina/lumina/internal/config"
	"github.com/use-lumina/lumina/internal/pkg/database"
	apperrors "github.com/use-lumina/lumina/internal/pkg/errors"
)

func setupQuotaTest(t *testing.T, limit int64) (*miniredis.Miniredis, *RateLimitService) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	redisDB := &database.RedisDB{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { redisDB.Close() })

	svc := NewRateLimitService(redisDB, config.QuotaConfig{
		Enabled:         true,
		DailyTraceLimit: limit,
	})
	svc.now = func() time.Time {
		return time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	}
	return mr, svc
}

func TestRateLimitService_Check(t *testing.T) {
	ctx := context.Background()

	t.Run("allows traffic under the limit", func(t *testing.T) {
		_, svc := setupQuotaTest(t, 100)

		svc.Record(ctx, 99)

		assert.NoError(t, svc.Check(ctx))
	})

	t.Run("rejects once the day's count reaches the limit", func(t *testing.T) {
		_, svc := setupQuotaTest(t, 100)

		svc.Record(ctx, 100)

		err := svc.Check(ctx)
		require.Error(t, err)
		assert.True(t, apperrors.IsQuotaExceeded(err))

		appErr := apperrors.GetAppError(err)
		require.NotNil(t, appErr)
		assert.Equal(t, "100", appErr.Details["limit"])
		assert.Equal(t, "100", appErr.Details["current"])
		assert.Equal(t, "2026-03-02T00:00:00Z", appErr.Details["resetTime"])
	})

	t.Run("fails open when the counter is unreachable", func(t *testing.T) {
		mr, svc := setupQuotaTest(t, 1)
		mr.Close()

		assert.NoError(t, svc.Check(ctx))
	})

	t.Run("disabled quota never rejects", func(t *testing.T) {
		_, svc := setupQuotaTest(t, 1)
		svc.cfg.Enabled = false

		svc.Record(ctx, 500)

		assert.NoError(t, svc.Check(ctx))
	})
}

func TestRateLimitService_Record(t *testing.T) {
	ctx := context.Background()

	t.Run("increments a day-scoped key with a ttl", func(t *testing.T) {
		mr, svc := setupQuotaTest(t, 100)

		svc.Record(ctx, 7)
		svc.Record(ctx, 3)

		got, err := mr.Get("lumina:quota:2026-03-01")
		require.NoError(t, err)
		assert.Equal(t, "10", got)
		assert.Greater(t, mr.TTL("lumina:quota:2026-03-01"), time.Duration(0))
	})

	t.Run("ignores non-positive counts", func(t *testing.T) {
		mr, svc := setupQuotaTest(t, 100)

		svc.Record(ctx, 0)
		svc.Record(ctx, -5)

		assert.False(t, mr.Exists("lumina:quota:2026-03-01"))
	})

	t.Run("absorbs counter failures", func(t *testing.T) {
		mr, svc := setupQuotaTest(t, 100)
		mr.Close()

		// Must not panic or error; losing an increment only under-counts.
		svc.Record(ctx, 5)
	})
}

func TestRateLimitService_Usage(t *testing.T) {
	ctx := context.Background()
	_, svc := setupQuotaTest(t, 100)

	svc.Record(ctx, 42)

	current, limit, err := svc.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), current)
	assert.Equal(t, int64(100), limit)
}
