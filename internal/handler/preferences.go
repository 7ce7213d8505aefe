package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/healthpal/backend/internal/audit"
	"github.com/healthpal/backend/internal/service"
	"github.com/healthpal/backend/pkg/model"
)

// PreferencesHandler implements user preference API endpoints
type PreferencesHandler struct {
	service *service.PreferencesService
	audit   *audit.Logger
	logger  *zap.Logger
}

// NewPreferencesHandler creates a new PreferencesHandler
func NewPreferencesHandler(service *service.PreferencesService, audit *audit.Logger, logger *zap.Logger) *PreferencesHandler {
	return &PreferencesHandler{
		service: service,
		audit:   audit,
		logger:  logger,
	}
}

// GetPreferences returns a user's preferences, falling back to defaults
// when none are stored
func (h *PreferencesHandler) GetPreferences(c *gin.Context) {
	userID := c.Param("user_id")

	prefs, err := h.service.Get(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get preferences",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "Failed to get preferences",
			Details: stringPtr(err.Error()),
		})
		return
	}

	c.JSON(http.StatusOK, prefs)
}

// UpdatePreferences replaces a user's preferences
func (h *PreferencesHandler) UpdatePreferences(c *gin.Context) {
	userID := c.Param("user_id")

	var prefs model.UserPreferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request body",
			Details: stringPtr(err.Error()),
		})
		return
	}

	if err := h.service.Update(c.Request.Context(), userID, &prefs); err != nil {
		h.logger.Error("failed to update preferences",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: err.Error(),
		})
		return
	}

	h.audit.LogUpdate(c.Request.Context(), userID, string(audit.ResourcePreferences),
		userID, c.ClientIP(), c.Request.UserAgent())

	c.JSON(http.StatusOK, prefs)
}
