package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/use-lumina/lumina/internal/config"
	"github.com/use-lumina/lumina/internal/pkg/database"
	apperrors "github.com/use-lumina/lumina/internal/pkg/errors"
	"github.com/use-lumina/lumina/internal/pkg/logger"
	"github.com/use-lumina/lumina/internal/pkg/metrics"
)

// quotaKeyTTL keeps yesterday's counter around briefly for inspection while
// guaranteeing the key eventually disappears.
const quotaKeyTTL = 48 * time.Hour

// RateLimitService enforces the daily ingestion quota. The counter lives in
// Redis under a UTC-day key; reads and writes are decoupled so a request is
// only counted after its traces are durably stored.
type RateLimitService struct {
	redis *database.RedisDB
	cfg   config.QuotaConfig
	now   func() time.Time
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(redis *database.RedisDB, cfg config.QuotaConfig) *RateLimitService {
	return &RateLimitService{
		redis: redis,
		cfg:   cfg,
		now:   time.Now,
	}
}

// quotaKey returns the counter key for the current UTC day
func (s *RateLimitService) quotaKey() string {
	return "lumina:quota:" + s.now().UTC().Format("2006-01-02")
}

// resetTime returns the next UTC midnight, when the quota window rolls over
func (s *RateLimitService) resetTime() time.Time {
	return s.now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
}

// Check reports whether the day's quota allows more traces. It never
// increments. When Redis is unreachable the check fails open: ingestion
// must not stop because the quota counter is down.
func (s *RateLimitService) Check(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}

	current, err := s.redis.GetInt64(ctx, s.quotaKey())
	if err != nil {
		logger.Warn("quota check failed open",
			zap.Error(err),
		)
		metrics.RecordOptionalInfraFailure("quota_counter")
		return nil
	}

	if current >= s.cfg.DailyTraceLimit {
		metrics.RecordQuotaRejection()
		return apperrors.QuotaExceeded(
			s.cfg.DailyTraceLimit,
			current,
			s.resetTime().Format(time.RFC3339),
		)
	}

	return nil
}

// Record adds accepted traces to the day's counter. Called only after the
// traces are durably stored. Failures are absorbed: losing an increment
// under-counts the quota, which errs on the side of accepting traffic.
func (s *RateLimitService) Record(ctx context.Context, count int) {
	if !s.cfg.Enabled || count <= 0 {
		return
	}

	key := s.quotaKey()
	pipe := s.redis.Pipeline()
	pipe.IncrBy(ctx, key, int64(count))
	pipe.Expire(ctx, key, quotaKeyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("failed to record quota usage",
			zap.Error(err),
			zap.Int("count", count),
		)
		metrics.RecordOptionalInfraFailure("quota_counter")
	}
}

// Usage returns the day's current count and limit for diagnostics
func (s *RateLimitService) Usage(ctx context.Context) (current, limit int64, err error) {
	current, err = s.redis.GetInt64(ctx, s.quotaKey())
	if err != nil {
		return 0, s.cfg.DailyTraceLimit, fmt.Errorf("failed to read quota counter: %w", err)
	}
	return current, s.cfg.DailyTraceLimit, nil
}
