package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/use-lumina/lumina/internal/domain"
	apperrors "github.com/use-lumina/lumina/internal/pkg/errors"
	"github.com/use-lumina/lumina/internal/service"
)

// TracesHandler handles trace query endpoints
type TracesHandler struct {
	queryService *service.QueryService
	logger       *zap.Logger
}

// NewTracesHandler creates a new traces handler
func NewTracesHandler(queryService *service.QueryService, logger *zap.Logger) *TracesHandler {
	return &TracesHandler{
		queryService: queryService,
		logger:       logger,
	}
}

// parseTraceFilter extracts filter options from query parameters
func parseTraceFilter(c *fiber.Ctx) domain.TraceFilter {
	filter := domain.TraceFilter{
		CustomerID:  queryStringPtr(c, "customer_id"),
		ServiceName: queryStringPtr(c, "service"),
		Endpoint:    queryStringPtr(c, "endpoint"),
		Model:       queryStringPtr(c, "model"),
		FromTime:    queryTimePtr(c, "from"),
		ToTime:      queryTimePtr(c, "to"),
	}

	if env := c.Query("environment"); env != "" {
		e := domain.Environment(env)
		filter.Environment = &e
	}
	if status := c.Query("status"); status != "" {
		s := domain.TraceStatus(status)
		filter.Status = &s
	}

	return filter
}

// ListTraces handles GET /v1/traces
func (h *TracesHandler) ListTraces(c *fiber.Ctx) error {
	filter := parseTraceFilter(c)
	p := ParsePagination(c, 1000)

	list, err := h.queryService.ListTraces(c.Context(), filter, p.Limit, p.Offset)
	if err != nil {
		h.logger.Error("failed to list traces", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to list traces")
	}

	return c.JSON(list)
}

// GetMetrics handles GET /v1/traces/metrics
func (h *TracesHandler) GetMetrics(c *fiber.Ctx) error {
	filter := parseTraceFilter(c)

	metrics, err := h.queryService.GetMetrics(c.Context(), filter)
	if err != nil {
		h.logger.Error("failed to compute trace metrics", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to compute trace metrics")
	}

	return c.JSON(metrics)
}

// GetTrace handles GET /v1/traces/:traceId/spans/:spanId
func (h *TracesHandler) GetTrace(c *fiber.Ctx) error {
	traceID := c.Params("traceId")
	spanID := c.Params("spanId")
	if traceID == "" || spanID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Trace ID and span ID required")
	}

	trace, err := h.queryService.GetTrace(c.Context(), traceID, spanID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Trace not found")
		}
		h.logger.Error("failed to get trace", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to get trace")
	}

	return c.JSON(trace)
}
