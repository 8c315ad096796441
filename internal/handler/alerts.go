package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/use-lumina/lumina/internal/domain"
	apperrors "github.com/use-lumina/lumina/internal/pkg/errors"
	"github.com/use-lumina/lumina/internal/service"
)

// AlertsHandler handles alert query and lifecycle endpoints
type AlertsHandler struct {
	alertService *service.AlertService
	logger       *zap.Logger
}

// NewAlertsHandler creates a new alerts handler
func NewAlertsHandler(alertService *service.AlertService, logger *zap.Logger) *AlertsHandler {
	return &AlertsHandler{
		alertService: alertService,
		logger:       logger,
	}
}

func parseAlertFilter(c *fiber.Ctx) domain.AlertFilter {
	filter := domain.AlertFilter{
		ServiceName: queryStringPtr(c, "service"),
		TraceID:     queryStringPtr(c, "trace_id"),
		FromTime:    queryTimePtr(c, "from"),
		ToTime:      queryTimePtr(c, "to"),
	}

	if status := c.Query("status"); status != "" {
		s := domain.AlertStatus(status)
		filter.Status = &s
	}
	if severity := c.Query("severity"); severity != "" {
		s := domain.AlertSeverity(severity)
		filter.Severity = &s
	}
	if alertType := c.Query("type"); alertType != "" {
		t := domain.AlertType(alertType)
		filter.Type = &t
	}

	return filter
}

// ListAlerts handles GET /v1/alerts
func (h *AlertsHandler) ListAlerts(c *fiber.Ctx) error {
	filter := parseAlertFilter(c)
	p := ParsePagination(c, 1000)

	list, err := h.alertService.ListAlerts(c.Context(), filter, p.Limit, p.Offset)
	if err != nil {
		h.logger.Error("failed to list alerts", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to list alerts")
	}

	return c.JSON(list)
}

// GetAlert handles GET /v1/alerts/:alertId
func (h *AlertsHandler) GetAlert(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("alertId"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid alert ID")
	}

	alert, err := h.alertService.GetAlert(c.Context(), id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Alert not found")
		}
		h.logger.Error("failed to get alert", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to get alert")
	}

	return c.JSON(alert)
}

// AcknowledgeAlert handles POST /v1/alerts/:alertId/acknowledge
func (h *AlertsHandler) AcknowledgeAlert(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("alertId"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid alert ID")
	}

	alert, err := h.alertService.Acknowledge(c.Context(), id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Alert not found")
		}
		h.logger.Error("failed to acknowledge alert", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to acknowledge alert")
	}

	return c.JSON(alert)
}

// ResolveAlert handles POST /v1/alerts/:alertId/resolve
func (h *AlertsHandler) ResolveAlert(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("alertId"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid alert ID")
	}

	alert, err := h.alertService.Resolve(c.Context(), id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Alert not found")
		}
		h.logger.Error("failed to resolve alert", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to resolve alert")
	}

	return c.JSON(alert)
}
