package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/use-lumina/lumina/internal/domain"
	"github.com/use-lumina/lumina/internal/pkg/logger"
	"github.com/use-lumina/lumina/internal/pkg/metrics"
)

// AlertStore persists alerts and their lifecycle transitions
type AlertStore interface {
	Create(ctx context.Context, alert *domain.Alert) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Alert, error)
	List(ctx context.Context, filter domain.AlertFilter, limit, offset int) ([]domain.Alert, int64, error)
	ListPending(ctx context.Context, limit int) ([]domain.Alert, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	Acknowledge(ctx context.Context, id uuid.UUID, at time.Time) (*domain.Alert, error)
	Resolve(ctx context.Context, id uuid.UUID, at time.Time) (*domain.Alert, error)
}

// DispatchPublisher hands persisted alerts to the asynchronous dispatcher.
// Best effort: the alert row is the source of truth, so a publish failure
// only delays delivery.
type DispatchPublisher interface {
	PublishDispatch(alertID uuid.UUID) error
}

// AlertService owns the alert lifecycle: creation with dedupe, listing,
// and the acknowledge and resolve transitions.
type AlertService struct {
	store     AlertStore
	publisher DispatchPublisher
	now       func() time.Time
}

// NewAlertService creates a new alert service
func NewAlertService(store AlertStore, publisher DispatchPublisher) *AlertService {
	return &AlertService{
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
}

// Raise persists an alert and queues it for dispatch. Raising the same
// (trace, span, type) twice is a no-op; the returned bool reports whether
// this call created the alert.
func (s *AlertService) Raise(ctx context.Context, alert *domain.Alert) (bool, error) {
	created, err := s.store.Create(ctx, alert)
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}

	metrics.RecordAlertCreated(string(alert.Type), string(alert.Severity))

	if s.publisher != nil {
		if err := s.publisher.PublishDispatch(alert.ID); err != nil {
			// The pending row survives; the dispatch sweeper will pick it up.
			logger.Warn("failed to enqueue alert dispatch",
				zap.String("alert_id", alert.ID.String()),
				zap.Error(err),
			)
			metrics.RecordOptionalInfraFailure("task_queue")
		}
	}

	return true, nil
}

// GetAlert returns one alert by ID
func (s *AlertService) GetAlert(ctx context.Context, id uuid.UUID) (*domain.Alert, error) {
	return s.store.GetByID(ctx, id)
}

// ListAlerts returns alerts matching the filter with pagination
func (s *AlertService) ListAlerts(ctx context.Context, filter domain.AlertFilter, limit, offset int) (*domain.AlertList, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	if offset < 0 {
		offset = 0
	}

	alerts, total, err := s.store.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, err
	}
	if alerts == nil {
		alerts = []domain.Alert{}
	}

	return &domain.AlertList{
		Alerts:     alerts,
		TotalCount: total,
		HasMore:    int64(offset+len(alerts)) < total,
	}, nil
}

// ListPending returns alerts awaiting dispatch
func (s *AlertService) ListPending(ctx context.Context, limit int) ([]domain.Alert, error) {
	return s.store.ListPending(ctx, limit)
}

// MarkSent records a successful dispatch
func (s *AlertService) MarkSent(ctx context.Context, id uuid.UUID) error {
	return s.store.MarkSent(ctx, id, s.now().UTC())
}

// Acknowledge marks an alert as seen. Idempotent.
func (s *AlertService) Acknowledge(ctx context.Context, id uuid.UUID) (*domain.Alert, error) {
	return s.store.Acknowledge(ctx, id, s.now().UTC())
}

// Resolve marks an alert as resolved. Idempotent.
func (s *AlertService) Resolve(ctx context.Context, id uuid.UUID) (*domain.Alert, error) {
	return s.store.Resolve(ctx, id, s.now().UTC())
}
