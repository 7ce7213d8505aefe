package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/healthpal/backend/internal/adherence"
	"github.com/healthpal/backend/pkg/model"
)

// SymptomStore persists daily symptom entries
type SymptomStore interface {
	Upsert(ctx context.Context, entry *model.SymptomEntry) error
	FindByUserAndDate(ctx context.Context, userID string, date time.Time) (*model.SymptomEntry, error)
	FindByUserAndDateRange(ctx context.Context, userID string, from, to time.Time) ([]model.SymptomEntry, error)
}

// SymptomService handles daily symptom self-reports. One entry exists
// per user per calendar day; logging twice on a day replaces the
// earlier entry.
type SymptomService struct {
	repo   SymptomStore
	clock  adherence.Clock
	logger *zap.Logger
}

// NewSymptomService creates a new SymptomService
func NewSymptomService(repo SymptomStore, clock adherence.Clock, logger *zap.Logger) *SymptomService {
	return &SymptomService{
		repo:   repo,
		clock:  clock,
		logger: logger,
	}
}

// LogEntry validates and stores a symptom entry for a calendar day
func (s *SymptomService) LogEntry(ctx context.Context, userID string, entry *model.SymptomEntry) error {
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}
	if err := validateLevel("pain", entry.PainLevel); err != nil {
		return err
	}
	if err := validateLevel("fatigue", entry.FatigueLevel); err != nil {
		return err
	}
	if err := validateLevel("mood", entry.MoodLevel); err != nil {
		return err
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.UserID = userID
	if entry.EntryDate.IsZero() {
		entry.EntryDate = s.clock.Today()
	} else {
		entry.EntryDate = adherence.StartOfDay(entry.EntryDate)
	}
	if entry.EntryMethod == "" {
		entry.EntryMethod = model.EntryManual
	}

	now := s.clock.Now()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	if err := s.repo.Upsert(ctx, entry); err != nil {
		s.logger.Error("failed to log symptom entry",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return fmt.Errorf("failed to log symptom entry: %w", err)
	}

	s.logger.Info("symptom entry logged",
		zap.String("user_id", userID),
		zap.Time("entry_date", entry.EntryDate),
		zap.String("entry_method", string(entry.EntryMethod)),
	)

	return nil
}

// GetEntry retrieves the entry for a single day
func (s *SymptomService) GetEntry(ctx context.Context, userID string, date time.Time) (*model.SymptomEntry, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	return s.repo.FindByUserAndDate(ctx, userID, adherence.StartOfDay(date))
}

// ListEntries retrieves the entries of the trailing N days including
// today
func (s *SymptomService) ListEntries(ctx context.Context, userID string, days int) ([]model.SymptomEntry, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	if days <= 0 {
		return nil, fmt.Errorf("days must be positive, got %d", days)
	}

	today := s.clock.Today()
	entries, err := s.repo.FindByUserAndDateRange(ctx, userID, today.AddDate(0, 0, -(days-1)), today.AddDate(0, 0, 1))
	if err != nil {
		s.logger.Error("failed to list symptom entries",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return nil, fmt.Errorf("failed to list symptom entries: %w", err)
	}

	return entries, nil
}

func validateLevel(name string, level *int) error {
	if level == nil {
		return nil
	}
	if *level < 1 || *level > 5 {
		return fmt.Errorf("%s level must be 1-5, got %d", name, *level)
	}
	return nil
}
