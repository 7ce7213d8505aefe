package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/healthpal/backend/internal/adherence"
	"github.com/healthpal/backend/internal/audit"
	"github.com/healthpal/backend/internal/service"
	"github.com/healthpal/backend/pkg/model"
)

// MedicationHandler implements medication API endpoints
type MedicationHandler struct {
	service *service.MedicationService
	audit   *audit.Logger
	logger  *zap.Logger
}

// NewMedicationHandler creates a new MedicationHandler
func NewMedicationHandler(service *service.MedicationService, audit *audit.Logger, logger *zap.Logger) *MedicationHandler {
	return &MedicationHandler{
		service: service,
		audit:   audit,
		logger:  logger,
	}
}

// CreateMedicationRequest is the body for adding a medication
type CreateMedicationRequest struct {
	UserID          string                `json:"user_id" binding:"required"`
	Name            string                `json:"name" binding:"required"`
	Dosage          string                `json:"dosage" binding:"required"`
	Instructions    string                `json:"instructions"`
	ScheduleType    model.ScheduleType    `json:"schedule_type" binding:"required"`
	ReminderSlots   []model.ReminderSlot  `json:"reminder_slots"`
	AllowSnooze     *bool                 `json:"allow_snooze"`
	SnoozeIntervals []int                 `json:"snooze_intervals"`
	Color           string                `json:"color"`
	Shape           model.MedicationShape `json:"shape"`
}

// CreateMedication adds a new medication with its reminder schedule
func (h *MedicationHandler) CreateMedication(c *gin.Context) {
	var req CreateMedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request body",
			Details: stringPtr(err.Error()),
		})
		return
	}

	medication := &model.Medication{
		Name:            req.Name,
		Dosage:          req.Dosage,
		Instructions:    req.Instructions,
		ScheduleType:    req.ScheduleType,
		ReminderSlots:   req.ReminderSlots,
		AllowSnooze:     true,
		SnoozeIntervals: req.SnoozeIntervals,
		Color:           req.Color,
		Shape:           req.Shape,
	}
	if req.AllowSnooze != nil {
		medication.AllowSnooze = *req.AllowSnooze
	}

	if err := h.service.AddMedication(c.Request.Context(), req.UserID, medication); err != nil {
		h.logger.Error("failed to add medication",
			zap.Error(err),
			zap.String("user_id", req.UserID),
		)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: err.Error(),
		})
		return
	}

	h.audit.LogCreate(c.Request.Context(), req.UserID, string(audit.ResourceMedication),
		medication.ID, c.ClientIP(), c.Request.UserAgent())

	c.JSON(http.StatusCreated, medication)
}

// ListMedications lists all medications for a user
func (h *MedicationHandler) ListMedications(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "user_id is required",
		})
		return
	}

	medications, err := h.service.ListMedications(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list medications",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "Failed to list medications",
			Details: stringPtr(err.Error()),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"medications": medications, "count": len(medications)})
}

// UpdateMedication replaces a medication's details and reminder schedule
func (h *MedicationHandler) UpdateMedication(c *gin.Context) {
	medicationID := c.Param("id")

	var req CreateMedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request body",
			Details: stringPtr(err.Error()),
		})
		return
	}

	medication := &model.Medication{
		Name:            req.Name,
		Dosage:          req.Dosage,
		Instructions:    req.Instructions,
		ScheduleType:    req.ScheduleType,
		ReminderSlots:   req.ReminderSlots,
		AllowSnooze:     true,
		SnoozeIntervals: req.SnoozeIntervals,
		Color:           req.Color,
		Shape:           req.Shape,
		Active:          true,
	}
	if req.AllowSnooze != nil {
		medication.AllowSnooze = *req.AllowSnooze
	}

	if err := h.service.UpdateMedication(c.Request.Context(), medicationID, medication); err != nil {
		h.logger.Error("failed to update medication",
			zap.Error(err),
			zap.String("medication_id", medicationID),
		)
		if errors.Is(err, adherence.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Code:    "NOT_FOUND",
				Message: err.Error(),
			})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: err.Error(),
		})
		return
	}

	h.audit.LogUpdate(c.Request.Context(), medication.UserID, string(audit.ResourceMedication),
		medicationID, c.ClientIP(), c.Request.UserAgent())

	c.JSON(http.StatusOK, medication)
}

// DeactivateMedication marks a medication inactive so it stops producing
// due doses while keeping its history
func (h *MedicationHandler) DeactivateMedication(c *gin.Context) {
	medicationID := c.Param("id")

	if err := h.service.DeactivateMedication(c.Request.Context(), medicationID); err != nil {
		h.logger.Error("failed to deactivate medication",
			zap.Error(err),
			zap.String("medication_id", medicationID),
		)
		if errors.Is(err, adherence.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Code:    "NOT_FOUND",
				Message: err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "Failed to deactivate medication",
			Details: stringPtr(err.Error()),
		})
		return
	}

	h.audit.LogUpdate(c.Request.Context(), c.Query("user_id"), string(audit.ResourceMedication),
		medicationID, c.ClientIP(), c.Request.UserAgent())

	c.Status(http.StatusNoContent)
}

// DeleteMedication deletes a medication. Its adherence records survive.
func (h *MedicationHandler) DeleteMedication(c *gin.Context) {
	medicationID := c.Param("id")

	if err := h.service.DeleteMedication(c.Request.Context(), medicationID); err != nil {
		h.logger.Error("failed to delete medication",
			zap.Error(err),
			zap.String("medication_id", medicationID),
		)
		if errors.Is(err, adherence.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Code:    "NOT_FOUND",
				Message: err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "Failed to delete medication",
			Details: stringPtr(err.Error()),
		})
		return
	}

	h.audit.LogDelete(c.Request.Context(), c.Query("user_id"), string(audit.ResourceMedication),
		medicationID, c.ClientIP(), c.Request.UserAgent())

	c.Status(http.StatusNoContent)
}
