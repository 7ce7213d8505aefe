package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/healthpal/backend/internal/adherence"
	"github.com/healthpal/backend/internal/audit"
	"github.com/healthpal/backend/internal/service"
	"github.com/healthpal/backend/pkg/model"
)

// AdherenceHandler implements dose tracking API endpoints
type AdherenceHandler struct {
	service *service.AdherenceService
	audit   *audit.Logger
	logger  *zap.Logger
}

// NewAdherenceHandler creates a new AdherenceHandler
func NewAdherenceHandler(service *service.AdherenceService, audit *audit.Logger, logger *zap.Logger) *AdherenceHandler {
	return &AdherenceHandler{
		service: service,
		audit:   audit,
		logger:  logger,
	}
}

// TakeDoseRequest is the body for marking a dose taken
type TakeDoseRequest struct {
	TakenAt     *time.Time        `json:"taken_at"`
	EntryMethod model.EntryMethod `json:"entry_method"`
	Notes       *string           `json:"notes"`
}

// MissDoseRequest is the body for marking a dose missed
type MissDoseRequest struct {
	Reason model.MissReason `json:"reason" binding:"required"`
	Notes  *string          `json:"notes"`
}

// SnoozeDoseRequest is the body for deferring a dose
type SnoozeDoseRequest struct {
	DurationMinutes int                `json:"duration_minutes" binding:"required"`
	Reason          *model.DelayReason `json:"reason"`
}

// SkipDoseRequest is the body for intentionally skipping a dose
type SkipDoseRequest struct {
	Notes *string `json:"notes"`
}

// GetDueDoses resolves every dose due for a user on a date, creating
// pending records for occurrences seen for the first time. The date
// defaults to today.
func (h *AdherenceHandler) GetDueDoses(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "user_id is required",
		})
		return
	}

	date := time.Now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "date must be formatted as YYYY-MM-DD",
				Details: stringPtr(err.Error()),
			})
			return
		}
		date = parsed
	}

	due, err := h.service.DueOn(c.Request.Context(), userID, date)
	if err != nil {
		h.logger.Error("failed to resolve due doses",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "Failed to resolve due doses",
			Details: stringPtr(err.Error()),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"due": due, "count": len(due)})
}

// TakeDose marks a dose as taken
func (h *AdherenceHandler) TakeDose(c *gin.Context) {
	recordID := c.Param("id")

	var req TakeDoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request body",
			Details: stringPtr(err.Error()),
		})
		return
	}

	takenAt := time.Now()
	if req.TakenAt != nil {
		takenAt = *req.TakenAt
	}
	method := req.EntryMethod
	if method == "" {
		method = model.EntryManual
	}

	record, err := h.service.LogTaken(c.Request.Context(), recordID, takenAt, method, req.Notes)
	if err != nil {
		h.respondRecordError(c, recordID, err, "Failed to log dose as taken")
		return
	}

	h.audit.LogUpdate(c.Request.Context(), record.UserID, string(audit.ResourceAdherenceRecord),
		record.ID, c.ClientIP(), c.Request.UserAgent())

	c.JSON(http.StatusOK, record)
}

// MissDose marks a dose as missed with a reason
func (h *AdherenceHandler) MissDose(c *gin.Context) {
	recordID := c.Param("id")

	var req MissDoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request body",
			Details: stringPtr(err.Error()),
		})
		return
	}

	record, err := h.service.LogMissed(c.Request.Context(), recordID, req.Reason, req.Notes)
	if err != nil {
		h.respondRecordError(c, recordID, err, "Failed to log dose as missed")
		return
	}

	h.audit.LogUpdate(c.Request.Context(), record.UserID, string(audit.ResourceAdherenceRecord),
		record.ID, c.ClientIP(), c.Request.UserAgent())

	c.JSON(http.StatusOK, record)
}

// SnoozeDose defers a dose and reports when the next reminder is due
func (h *AdherenceHandler) SnoozeDose(c *gin.Context) {
	recordID := c.Param("id")

	var req SnoozeDoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request body",
			Details: stringPtr(err.Error()),
		})
		return
	}

	result, err := h.service.Snooze(c.Request.Context(), recordID, req.DurationMinutes, req.Reason)
	if err != nil {
		h.respondRecordError(c, recordID, err, "Failed to snooze dose")
		return
	}

	h.audit.LogUpdate(c.Request.Context(), result.Record.UserID, string(audit.ResourceAdherenceRecord),
		result.Record.ID, c.ClientIP(), c.Request.UserAgent())

	c.JSON(http.StatusOK, result)
}

// SkipDose marks a dose as intentionally skipped
func (h *AdherenceHandler) SkipDose(c *gin.Context) {
	recordID := c.Param("id")

	var req SkipDoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request body",
			Details: stringPtr(err.Error()),
		})
		return
	}

	record, err := h.service.LogSkipped(c.Request.Context(), recordID, req.Notes)
	if err != nil {
		h.respondRecordError(c, recordID, err, "Failed to skip dose")
		return
	}

	h.audit.LogUpdate(c.Request.Context(), record.UserID, string(audit.ResourceAdherenceRecord),
		record.ID, c.ClientIP(), c.Request.UserAgent())

	c.JSON(http.StatusOK, record)
}

// GetStreak reports the user's current consecutive-day adherence streak
func (h *AdherenceHandler) GetStreak(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "user_id is required",
		})
		return
	}

	streak, err := h.service.Streak(c.Request.Context(), userID, time.Now())
	if err != nil {
		h.logger.Error("failed to compute streak",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "Failed to compute streak",
			Details: stringPtr(err.Error()),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"streak_days": streak})
}

// respondRecordError maps domain errors from the dose state machine to
// HTTP statuses
func (h *AdherenceHandler) respondRecordError(c *gin.Context, recordID string, err error, message string) {
	h.logger.Error(message,
		zap.Error(err),
		zap.String("record_id", recordID),
	)

	switch {
	case errors.Is(err, adherence.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: err.Error(),
		})
	case errors.Is(err, adherence.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    "NOT_FOUND",
			Message: err.Error(),
		})
	case errors.Is(err, adherence.ErrInconsistentRecord):
		c.JSON(http.StatusConflict, ErrorResponse{
			Code:    "INCONSISTENT_RECORD",
			Message: err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "INTERNAL_ERROR",
			Message: message,
			Details: stringPtr(err.Error()),
		})
	}
}
