package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/healthpal/backend/internal/service"
)

// ProgressHandler implements progress reporting API endpoints
type ProgressHandler struct {
	service *service.ProgressService
	logger  *zap.Logger
}

// NewProgressHandler creates a new ProgressHandler
func NewProgressHandler(service *service.ProgressService, logger *zap.Logger) *ProgressHandler {
	return &ProgressHandler{
		service: service,
		logger:  logger,
	}
}

// GetSummary returns adherence and wellness aggregates over a 7, 30 or
// 90 day window
func (h *ProgressHandler) GetSummary(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "user_id is required",
		})
		return
	}

	days := 7
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "days must be an integer",
				Details: stringPtr(err.Error()),
			})
			return
		}
		days = parsed
	}

	summary, err := h.service.GetSummary(c.Request.Context(), userID, days)
	if err != nil {
		h.logger.Error("failed to build progress summary",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.Int("days", days),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "Failed to build progress summary",
			Details: stringPtr(err.Error()),
		})
		return
	}

	c.JSON(http.StatusOK, summary)
}
