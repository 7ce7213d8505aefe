package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/healthpal/backend/internal/adherence"
	"github.com/healthpal/backend/internal/repository"
	"github.com/healthpal/backend/pkg/model"
)

// Default presentation and snooze settings applied to new medications
var defaultSnoozeIntervals = []int{15, 30, 60}

const (
	defaultColor = "blue"
	defaultShape = model.ShapePill
)

// MedicationService handles medication management business logic
type MedicationService struct {
	repo   *repository.MedicationRepository
	logger *zap.Logger
}

// NewMedicationService creates a new MedicationService
func NewMedicationService(repo *repository.MedicationRepository, logger *zap.Logger) *MedicationService {
	return &MedicationService{
		repo:   repo,
		logger: logger,
	}
}

// AddMedication validates and stores a new medication for a user
func (s *MedicationService) AddMedication(ctx context.Context, userID string, med *model.Medication) error {
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}
	if med.Name == "" {
		return fmt.Errorf("medication name is required")
	}
	if med.Dosage == "" {
		return fmt.Errorf("medication dosage is required")
	}
	if err := validateSchedule(med); err != nil {
		return err
	}

	// Generate IDs if not provided
	if med.ID == "" {
		med.ID = uuid.New().String()
	}
	for i := range med.ReminderSlots {
		if med.ReminderSlots[i].ID == "" {
			med.ReminderSlots[i].ID = uuid.New().String()
		}
		med.ReminderSlots[i].MedicationID = med.ID
	}

	med.UserID = userID
	med.Active = true
	if len(med.SnoozeIntervals) == 0 {
		med.SnoozeIntervals = defaultSnoozeIntervals
	}
	if med.Color == "" {
		med.Color = defaultColor
	}
	if med.Shape == "" {
		med.Shape = defaultShape
	}

	now := time.Now()
	med.CreatedAt = now
	med.UpdatedAt = now

	if err := s.repo.Create(ctx, med); err != nil {
		s.logger.Error("failed to add medication",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("medication_name", med.Name),
		)
		return fmt.Errorf("failed to add medication: %w", err)
	}

	s.logger.Info("medication added successfully",
		zap.String("medication_id", med.ID),
		zap.String("user_id", userID),
		zap.String("name", med.Name),
		zap.String("schedule_type", string(med.ScheduleType)),
	)

	return nil
}

// ListMedications retrieves all medications for a user
func (s *MedicationService) ListMedications(ctx context.Context, userID string) ([]model.Medication, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	medications, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list medications",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}

	s.logger.Info("medications listed successfully",
		zap.String("user_id", userID),
		zap.Int("count", len(medications)),
	)

	return medications, nil
}

// UpdateMedication updates an existing medication
func (s *MedicationService) UpdateMedication(ctx context.Context, medID string, updates *model.Medication) error {
	if medID == "" {
		return fmt.Errorf("medication ID is required")
	}
	if err := validateSchedule(updates); err != nil {
		return err
	}

	// Fetch existing medication to preserve ID and user_id
	existing, err := s.repo.FindByID(ctx, medID)
	if err != nil {
		s.logger.Error("failed to find medication for update",
			zap.Error(err),
			zap.String("medication_id", medID),
		)
		return fmt.Errorf("medication not found: %w", err)
	}

	updates.ID = existing.ID
	updates.UserID = existing.UserID
	updates.CreatedAt = existing.CreatedAt
	updates.UpdatedAt = time.Now()

	for i := range updates.ReminderSlots {
		if updates.ReminderSlots[i].ID == "" {
			updates.ReminderSlots[i].ID = uuid.New().String()
		}
		updates.ReminderSlots[i].MedicationID = updates.ID
	}

	if err := s.repo.Update(ctx, updates); err != nil {
		s.logger.Error("failed to update medication",
			zap.Error(err),
			zap.String("medication_id", medID),
		)
		return fmt.Errorf("failed to update medication: %w", err)
	}

	s.logger.Info("medication updated successfully",
		zap.String("medication_id", medID),
		zap.String("name", updates.Name),
	)

	return nil
}

// DeactivateMedication marks a medication inactive without touching its
// adherence history
func (s *MedicationService) DeactivateMedication(ctx context.Context, medID string) error {
	if medID == "" {
		return fmt.Errorf("medication ID is required")
	}

	med, err := s.repo.FindByID(ctx, medID)
	if err != nil {
		return fmt.Errorf("medication not found: %w", err)
	}

	med.Active = false
	med.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, med); err != nil {
		s.logger.Error("failed to deactivate medication",
			zap.Error(err),
			zap.String("medication_id", medID),
		)
		return fmt.Errorf("failed to deactivate medication: %w", err)
	}

	s.logger.Info("medication deactivated",
		zap.String("medication_id", medID),
	)

	return nil
}

// DeleteMedication deletes a medication. Adherence records reference
// medications weakly, so history survives the deletion.
func (s *MedicationService) DeleteMedication(ctx context.Context, medID string) error {
	if medID == "" {
		return fmt.Errorf("medication ID is required")
	}

	if err := s.repo.Delete(ctx, medID); err != nil {
		s.logger.Error("failed to delete medication",
			zap.Error(err),
			zap.String("medication_id", medID),
		)
		return fmt.Errorf("failed to delete medication: %w", err)
	}

	s.logger.Info("medication deleted successfully",
		zap.String("medication_id", medID),
	)

	return nil
}

// validateSchedule enforces the medication scheduling invariants:
// as-needed medications need no slots, every other schedule type needs
// at least one enabled slot, and custom schedules need a weekday set on
// each enabled slot.
func validateSchedule(med *model.Medication) error {
	switch med.ScheduleType {
	case model.ScheduleTypeDaily, model.ScheduleTypeWeekdays, model.ScheduleTypeWeekends,
		model.ScheduleTypeCustom, model.ScheduleTypeAsNeeded:
	default:
		return fmt.Errorf("unknown schedule type: %s", med.ScheduleType)
	}

	for _, interval := range med.SnoozeIntervals {
		if interval <= 0 {
			return fmt.Errorf("snooze intervals must be positive, got %d", interval)
		}
	}

	for _, slot := range med.ReminderSlots {
		if slot.Hour < 0 || slot.Hour > 23 {
			return fmt.Errorf("reminder hour must be 0-23, got %d", slot.Hour)
		}
		if slot.Minute < 0 || slot.Minute > 59 {
			return fmt.Errorf("reminder minute must be 0-59, got %d", slot.Minute)
		}
		for _, day := range slot.CustomDays {
			if day < adherence.WeekdaySunday || day > adherence.WeekdaySaturday {
				return fmt.Errorf("custom days must be 1-7, got %d", day)
			}
		}
	}

	if med.ScheduleType == model.ScheduleTypeAsNeeded {
		return nil
	}

	enabled := 0
	for _, slot := range med.ReminderSlots {
		if !slot.Enabled {
			continue
		}
		enabled++
		if med.ScheduleType == model.ScheduleTypeCustom && len(slot.CustomDays) == 0 {
			return fmt.Errorf("custom schedule requires a weekday set on every enabled slot")
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one enabled reminder slot is required for a %s schedule", med.ScheduleType)
	}

	return nil
}
