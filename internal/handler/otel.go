package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/use-lumina/lumina/internal/pkg/errors"
	"github.com/use-lumina/lumina/internal/service"
)

// OTELHandler handles the OTLP/JSON trace export endpoint
type OTELHandler struct {
	ingestion *service.IngestionService
	logger    *zap.Logger
}

// NewOTELHandler creates a new OTLP ingest handler
func NewOTELHandler(ingestion *service.IngestionService, logger *zap.Logger) *OTELHandler {
	return &OTELHandler{
		ingestion: ingestion,
		logger:    logger,
	}
}

// ExportTraces handles POST /v1/traces
func (h *OTELHandler) ExportTraces(c *fiber.Ctx) error {
	count, err := h.ingestion.Ingest(c.Context(), c.Body())
	if err != nil {
		appErr := apperrors.GetAppError(err)
		switch {
		case appErr != nil && appErr.Code == apperrors.CodeMalformedPayload:
			return errorResponse(c, fiber.StatusBadRequest, appErr.Message)

		case appErr != nil && appErr.Code == apperrors.CodeQuotaExceeded:
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":     "Too Many Requests",
				"message":   appErr.Message,
				"limit":     appErr.Details["limit"],
				"current":   appErr.Details["current"],
				"resetTime": appErr.Details["resetTime"],
			})

		case appErr != nil && appErr.Code == apperrors.CodeStoreUnavailable:
			h.logger.Error("ingest rejected, trace store unavailable", zap.Error(err))
			return errorResponse(c, fiber.StatusServiceUnavailable, appErr.Message)

		default:
			h.logger.Error("ingest failed", zap.Error(err))
			return errorResponse(c, fiber.StatusInternalServerError, "Failed to ingest traces")
		}
	}

	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Accepted %d spans", count),
		"count":   count,
	})
}
