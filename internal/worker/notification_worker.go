package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/use-lumina/lumina/internal/domain"
	"github.com/use-lumina/lumina/internal/pkg/errors"
	"github.com/use-lumina/lumina/internal/service"
)

const (
	// TypeAlertDispatch is the task type for delivering one alert
	TypeAlertDispatch = "alert:dispatch"
	// TypeAlertSweep is the task type for re-queuing stranded pending
	// alerts, covering the window where the broker was down when the
	// alert was created.
	TypeAlertSweep = "alert:sweep"
)

// alertSweepBatch bounds one sweep's worth of stranded alerts
const alertSweepBatch = 100

// AlertDispatchPayload is the payload for alert dispatch tasks
type AlertDispatchPayload struct {
	AlertID uuid.UUID `json:"alert_id"`
}

// NewAlertDispatchTask creates an alert dispatch task
func NewAlertDispatchTask(payload *AlertDispatchPayload, maxRetries int) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal alert dispatch payload: %w", err)
	}
	return asynq.NewTask(TypeAlertDispatch, data, asynq.MaxRetry(maxRetries), asynq.Timeout(1*time.Minute)), nil
}

// NotificationWorker delivers persisted alerts to webhooks
type NotificationWorker struct {
	logger        *zap.Logger
	alerts        *service.AlertService
	notifications *service.NotificationService
	maxRetries    int
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(
	logger *zap.Logger,
	alerts *service.AlertService,
	notifications *service.NotificationService,
	maxRetries int,
) *NotificationWorker {
	return &NotificationWorker{
		logger:        logger,
		alerts:        alerts,
		notifications: notifications,
		maxRetries:    maxRetries,
	}
}

// ProcessTask processes an alert dispatch task
func (w *NotificationWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload AlertDispatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal alert dispatch payload: %w", err)
	}

	alert, err := w.alerts.GetAlert(ctx, payload.AlertID)
	if err != nil {
		if errors.IsNotFound(err) {
			w.logger.Warn("alert to dispatch no longer exists",
				zap.String("alert_id", payload.AlertID.String()),
			)
			return nil
		}
		return err
	}

	// A duplicate task after a successful send must not re-notify.
	if alert.Status != domain.AlertStatusPending {
		return nil
	}

	if err := w.notifications.Dispatch(ctx, alert); err != nil {
		return err
	}

	return w.alerts.MarkSent(ctx, alert.ID)
}

// ProcessSweepTask re-queues pending alerts whose original dispatch task
// never made it onto the queue. The alert table is the source of truth, so
// nothing is lost while the broker is down; this closes the gap once it
// comes back.
func (w *NotificationWorker) ProcessSweepTask(ctx context.Context, t *asynq.Task) error {
	pending, err := w.alerts.ListPending(ctx, alertSweepBatch)
	if err != nil {
		return err
	}

	for _, alert := range pending {
		alert := alert
		if err := w.notifications.Dispatch(ctx, &alert); err != nil {
			w.logger.Warn("pending alert dispatch failed, will retry next sweep",
				zap.String("alert_id", alert.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if err := w.alerts.MarkSent(ctx, alert.ID); err != nil {
			return err
		}
	}

	if len(pending) > 0 {
		w.logger.Info("alert sweep processed pending alerts",
			zap.Int("count", len(pending)),
		)
	}

	return nil
}
