package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/healthpal/backend/internal/adherence"
	"github.com/healthpal/backend/pkg/model"
)

// streakLookback bounds how far back the streak query reaches. Nobody
// renders streaks longer than this without a dedicated report.
const streakLookback = 365

// MedicationStore is the medication lookup the adherence service needs
type MedicationStore interface {
	FindActiveByUserID(ctx context.Context, userID string) ([]model.Medication, error)
	FindByID(ctx context.Context, medicationID string) (*model.Medication, error)
}

// AdherenceStore persists adherence records
type AdherenceStore interface {
	CreateIfAbsent(ctx context.Context, record *model.AdherenceRecord) (*model.AdherenceRecord, error)
	FindByID(ctx context.Context, recordID string) (*model.AdherenceRecord, error)
	FindByUserAndDateRange(ctx context.Context, userID string, from, to time.Time) ([]model.AdherenceRecord, error)
	Update(ctx context.Context, record *model.AdherenceRecord) error
}

// DueOccurrence is one dose the patient should take on a given day,
// paired with its adherence record
type DueOccurrence struct {
	Medication model.Medication      `json:"medication"`
	Slot       model.ReminderSlot    `json:"slot"`
	Record     model.AdherenceRecord `json:"record"`
}

// SnoozeResult tells the caller how long the dose was deferred and when
// the next reminder is due. Scheduling the reminder itself is the
// notification layer's job.
type SnoozeResult struct {
	Record           model.AdherenceRecord `json:"record"`
	DurationMinutes  int                   `json:"duration_minutes"`
	NextReminderTime time.Time             `json:"next_reminder_time"`
}

// AdherenceService composes the schedule resolver, reconciler and state
// machine with persistence. Reconciliation's find-or-create is the one
// race in the system; the service serializes it with a singleflight
// group keyed per occurrence, and the store's uniqueness constraint
// backs that up across processes.
type AdherenceService struct {
	medications MedicationStore
	records     AdherenceStore
	clock       adherence.Clock
	reconciles  singleflight.Group
	logger      *zap.Logger
}

// NewAdherenceService creates a new AdherenceService
func NewAdherenceService(medications MedicationStore, records AdherenceStore, clock adherence.Clock, logger *zap.Logger) *AdherenceService {
	return &AdherenceService{
		medications: medications,
		records:     records,
		clock:       clock,
		logger:      logger,
	}
}

// DueOn resolves every dose due for a user on a date, reconciling each
// occurrence against stored records and creating pending records for
// occurrences seen for the first time. Results are ordered by reminder
// time ascending across medications.
func (s *AdherenceService) DueOn(ctx context.Context, userID string, date time.Time) ([]DueOccurrence, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	medications, err := s.medications.FindActiveByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load medications for due resolution",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return nil, fmt.Errorf("failed to load medications: %w", err)
	}

	dayStart := adherence.StartOfDay(date)
	existing, err := s.records.FindByUserAndDateRange(ctx, userID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		s.logger.Error("failed to load adherence records for due resolution",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return nil, fmt.Errorf("failed to load adherence records: %w", err)
	}

	var due []DueOccurrence
	for i := range medications {
		med := medications[i]

		slots, err := adherence.ResolveDueSlots(&med, date)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve due slots for medication %s: %w", med.ID, err)
		}

		for _, slot := range slots {
			record, err := s.reconcileOccurrence(ctx, &med, slot, date, existing)
			if err != nil {
				return nil, err
			}
			due = append(due, DueOccurrence{Medication: med, Slot: slot, Record: *record})
		}
	}

	sortOccurrences(due)

	s.logger.Info("due occurrences resolved",
		zap.String("user_id", userID),
		zap.Time("date", dayStart),
		zap.Int("count", len(due)),
	)

	return due, nil
}

// reconcileOccurrence runs find-or-create for one occurrence inside a
// singleflight flight keyed by (medication, scheduled time), so a UI
// refresh and a notification response racing on the same occurrence
// share a single create.
func (s *AdherenceService) reconcileOccurrence(ctx context.Context, med *model.Medication, slot model.ReminderSlot, date time.Time, existing []model.AdherenceRecord) (*model.AdherenceRecord, error) {
	scheduled := adherence.ScheduledTimeFor(date, slot)
	key := med.ID + "|" + scheduled.UTC().Format("2006-01-02T15:04")

	result, err, _ := s.reconciles.Do(key, func() (interface{}, error) {
		record, created := adherence.Reconcile(med, slot, date, existing, s.clock)
		if !created {
			return record, nil
		}
		return s.records.CreateIfAbsent(ctx, record)
	})
	if err != nil {
		s.logger.Error("failed to reconcile occurrence",
			zap.Error(err),
			zap.String("medication_id", med.ID),
			zap.Time("scheduled_time", scheduled),
		)
		return nil, fmt.Errorf("failed to reconcile occurrence: %w", err)
	}

	return result.(*model.AdherenceRecord), nil
}

// LogTaken marks a dose as taken and persists the updated record
func (s *AdherenceService) LogTaken(ctx context.Context, recordID string, takenAt time.Time, method model.EntryMethod, notes *string) (*model.AdherenceRecord, error) {
	record, err := s.loadRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	adherence.MarkTaken(record, takenAt, method, notes, s.clock)

	if err := s.records.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save adherence record: %w", err)
	}

	s.logger.Info("dose logged as taken",
		zap.String("record_id", record.ID),
		zap.String("medication_id", record.MedicationID),
		zap.Bool("on_time", adherence.IsOnTime(record)),
		zap.Int("delay_minutes", adherence.DelayMinutes(record)),
	)

	return record, nil
}

// LogMissed marks a dose as missed with a reason
func (s *AdherenceService) LogMissed(ctx context.Context, recordID string, reason model.MissReason, notes *string) (*model.AdherenceRecord, error) {
	record, err := s.loadRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	adherence.MarkMissed(record, reason, notes, s.clock)

	if err := s.records.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save adherence record: %w", err)
	}

	s.logger.Info("dose logged as missed",
		zap.String("record_id", record.ID),
		zap.String("medication_id", record.MedicationID),
		zap.String("reason", string(reason)),
		zap.Bool("requires_attention", reason.RequiresAttention()),
	)

	return record, nil
}

// Snooze defers a dose. The duration must be positive and, when the
// medication still exists, allowed by its snooze configuration.
func (s *AdherenceService) Snooze(ctx context.Context, recordID string, durationMinutes int, reason *model.DelayReason) (*SnoozeResult, error) {
	record, err := s.loadRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	// The medication reference is weak: when it has been deleted the
	// snooze configuration is gone and any positive duration passes.
	// Any other lookup failure must not bypass the snooze policy.
	med, err := s.medications.FindByID(ctx, record.MedicationID)
	switch {
	case err == nil:
		if !med.AllowSnooze {
			return nil, fmt.Errorf("%w: snoozing is disabled for %s", adherence.ErrInvalidInput, med.Name)
		}
		if !allowedInterval(med.SnoozeIntervals, durationMinutes) {
			return nil, fmt.Errorf("%w: %d minutes is not an allowed snooze interval for %s",
				adherence.ErrInvalidInput, durationMinutes, med.Name)
		}
	case errors.Is(err, adherence.ErrNotFound):
		// deleted medication, proceed without its policy
	default:
		s.logger.Error("failed to load medication for snooze",
			zap.Error(err),
			zap.String("medication_id", record.MedicationID),
		)
		return nil, fmt.Errorf("failed to load medication: %w", err)
	}

	if err := adherence.AddSnooze(record, durationMinutes, reason, s.clock); err != nil {
		return nil, err
	}

	if err := s.records.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save adherence record: %w", err)
	}

	s.logger.Info("dose snoozed",
		zap.String("record_id", record.ID),
		zap.String("medication_id", record.MedicationID),
		zap.Int("duration_minutes", durationMinutes),
		zap.Int("snooze_count", record.SnoozeCount),
	)

	return &SnoozeResult{
		Record:           *record,
		DurationMinutes:  durationMinutes,
		NextReminderTime: s.clock.Now().Add(time.Duration(durationMinutes) * time.Minute),
	}, nil
}

// LogSkipped marks a dose as intentionally skipped
func (s *AdherenceService) LogSkipped(ctx context.Context, recordID string, notes *string) (*model.AdherenceRecord, error) {
	record, err := s.loadRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	adherence.MarkSkipped(record, notes, s.clock)

	if err := s.records.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save adherence record: %w", err)
	}

	s.logger.Info("dose logged as skipped",
		zap.String("record_id", record.ID),
		zap.String("medication_id", record.MedicationID),
	)

	return record, nil
}

// Streak computes the user's consecutive-day adherence streak ending at
// asOf
func (s *AdherenceService) Streak(ctx context.Context, userID string, asOf time.Time) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("user ID is required")
	}

	day := adherence.StartOfDay(asOf)
	records, err := s.records.FindByUserAndDateRange(ctx, userID, day.AddDate(0, 0, -streakLookback), day.AddDate(0, 0, 1))
	if err != nil {
		s.logger.Error("failed to load records for streak",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return 0, fmt.Errorf("failed to load adherence records: %w", err)
	}

	return adherence.AdherenceStreak(records, asOf), nil
}

func (s *AdherenceService) loadRecord(ctx context.Context, recordID string) (*model.AdherenceRecord, error) {
	if recordID == "" {
		return nil, fmt.Errorf("record ID is required")
	}

	record, err := s.records.FindByID(ctx, recordID)
	if err != nil {
		s.logger.Error("failed to load adherence record",
			zap.Error(err),
			zap.String("record_id", recordID),
		)
		return nil, fmt.Errorf("failed to load adherence record: %w", err)
	}

	// A record that fails consistency checks came out of storage
	// corrupted; report it rather than guess at its state.
	if err := adherence.Validate(record); err != nil {
		s.logger.Error("stored adherence record is inconsistent",
			zap.Error(err),
			zap.String("record_id", recordID),
		)
		return nil, err
	}

	return record, nil
}

func allowedInterval(intervals []int, duration int) bool {
	if len(intervals) == 0 {
		return true
	}
	for _, interval := range intervals {
		if interval == duration {
			return true
		}
	}
	return false
}

func sortOccurrences(due []DueOccurrence) {
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].Slot.Hour != due[j].Slot.Hour {
			return due[i].Slot.Hour < due[j].Slot.Hour
		}
		return due[i].Slot.Minute < due[j].Slot.Minute
	})
}
