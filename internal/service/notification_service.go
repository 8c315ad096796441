package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/use-lumina/lumina/internal/config"
	"github.com/use-lumina/lumina/internal/domain"
	"github.com/use-lumina/lumina/internal/pkg/circuitbreaker"
	"github.com/use-lumina/lumina/internal/pkg/logger"
	"github.com/use-lumina/lumina/internal/pkg/metrics"
)

// NotificationService delivers alert payloads to configured webhooks. Each
// destination sits behind its own circuit breaker, so one dead endpoint
// does not hold up delivery to the others.
type NotificationService struct {
	cfg      config.AlertingConfig
	client   *fasthttp.Client
	breakers *circuitbreaker.Registry
}

// NewNotificationService creates a new notification service
func NewNotificationService(cfg config.AlertingConfig) *NotificationService {
	return &NotificationService{
		cfg: cfg,
		client: &fasthttp.Client{
			ReadTimeout:  cfg.DispatchTimeout(),
			WriteTimeout: cfg.DispatchTimeout(),
		},
		breakers: circuitbreaker.NewRegistry(),
	}
}

// Dispatch posts the alert to every configured webhook. It returns an
// error when any destination fails, so the caller can retry; destinations
// that already succeeded are protected from duplicates only by the
// receiver being idempotent on alert ID.
func (s *NotificationService) Dispatch(ctx context.Context, alert *domain.Alert) error {
	if len(s.cfg.WebhookURLs) == 0 {
		logger.Debug("no webhooks configured, alert dispatch is a no-op",
			zap.String("alert_id", alert.ID.String()),
		)
		return nil
	}

	payload := domain.NotificationPayload{
		Alert:        *alert,
		TraceURL:     s.traceURL(alert),
		DashboardURL: s.cfg.DashboardURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	var failed int
	for _, url := range s.cfg.WebhookURLs {
		breaker := s.breakers.Get(url)
		err := breaker.Execute(ctx, func() error {
			return s.post(url, body)
		})
		if err != nil {
			failed++
			metrics.RecordAlertDispatch("failure")
			logger.Warn("webhook delivery failed",
				zap.String("alert_id", alert.ID.String()),
				zap.String("webhook", url),
				zap.Error(err),
			)
			continue
		}
		metrics.RecordAlertDispatch("success")
	}

	if failed > 0 {
		return fmt.Errorf("alert %s: %d of %d webhook deliveries failed", alert.ID, failed, len(s.cfg.WebhookURLs))
	}
	return nil
}

func (s *NotificationService) post(url string, body []byte) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := s.client.DoTimeout(req, resp, s.cfg.DispatchTimeout()); err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		return fmt.Errorf("webhook returned status %d", status)
	}
	return nil
}

func (s *NotificationService) traceURL(alert *domain.Alert) string {
	if s.cfg.DashboardURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/traces/%s?span=%s", s.cfg.DashboardURL, alert.TraceID, alert.SpanID)
}
