package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/healthpal/backend/internal/adherence"
	"github.com/healthpal/backend/internal/audit"
	"github.com/healthpal/backend/internal/service"
	"github.com/healthpal/backend/pkg/model"
)

// SymptomHandler implements symptom tracking API endpoints
type SymptomHandler struct {
	service *service.SymptomService
	audit   *audit.Logger
	logger  *zap.Logger
}

// NewSymptomHandler creates a new SymptomHandler
func NewSymptomHandler(service *service.SymptomService, audit *audit.Logger, logger *zap.Logger) *SymptomHandler {
	return &SymptomHandler{
		service: service,
		audit:   audit,
		logger:  logger,
	}
}

// LogSymptomsRequest is the body for recording a daily symptom entry
type LogSymptomsRequest struct {
	UserID       string     `json:"user_id" binding:"required"`
	EntryDate    *time.Time `json:"entry_date"`
	PainLevel    *int       `json:"pain_level"`
	FatigueLevel *int       `json:"fatigue_level"`
	MoodLevel    *int       `json:"mood_level"`
	Notes        *string    `json:"notes"`
	Triggers     []string   `json:"triggers"`
}

// LogSymptoms records a symptom entry for a day, replacing any entry
// already stored for that day
func (h *SymptomHandler) LogSymptoms(c *gin.Context) {
	var req LogSymptomsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request body",
			Details: stringPtr(err.Error()),
		})
		return
	}

	entry := &model.SymptomEntry{
		PainLevel:    req.PainLevel,
		FatigueLevel: req.FatigueLevel,
		MoodLevel:    req.MoodLevel,
		Notes:        req.Notes,
		Triggers:     req.Triggers,
		EntryMethod:  model.EntryManual,
	}
	if req.EntryDate != nil {
		entry.EntryDate = *req.EntryDate
	}

	if err := h.service.LogEntry(c.Request.Context(), req.UserID, entry); err != nil {
		h.logger.Error("failed to log symptoms",
			zap.Error(err),
			zap.String("user_id", req.UserID),
		)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: err.Error(),
		})
		return
	}

	h.audit.LogCreate(c.Request.Context(), req.UserID, string(audit.ResourceSymptomEntry),
		entry.ID, c.ClientIP(), c.Request.UserAgent())

	c.JSON(http.StatusCreated, entry)
}

// GetSymptoms retrieves the symptom entry for one day, or the last N
// days when the days parameter is given
func (h *SymptomHandler) GetSymptoms(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "user_id is required",
		})
		return
	}

	if raw := c.Query("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "days must be an integer",
				Details: stringPtr(err.Error()),
			})
			return
		}

		entries, err := h.service.ListEntries(c.Request.Context(), userID, days)
		if err != nil {
			h.logger.Error("failed to list symptom entries",
				zap.Error(err),
				zap.String("user_id", userID),
			)
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Code:    "INTERNAL_ERROR",
				Message: "Failed to list symptom entries",
				Details: stringPtr(err.Error()),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
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

	entry, err := h.service.GetEntry(c.Request.Context(), userID, date)
	if err != nil {
		if errors.Is(err, adherence.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Code:    "NOT_FOUND",
				Message: "No symptom entry for that day",
			})
			return
		}
		h.logger.Error("failed to get symptom entry",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "Failed to get symptom entry",
			Details: stringPtr(err.Error()),
		})
		return
	}

	c.JSON(http.StatusOK, entry)
}
