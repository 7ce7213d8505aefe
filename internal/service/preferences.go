package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/healthpal/backend/pkg/model"
)

// PreferencesStore persists per-user preference flags
type PreferencesStore interface {
	Get(ctx context.Context, userID string) (*model.UserPreferences, error)
	Put(ctx context.Context, prefs *model.UserPreferences) error
}

// PreferencesService manages the flags that gate application flows,
// such as the daily symptom check prompt. The adherence engine never
// consults these.
type PreferencesService struct {
	repo   PreferencesStore
	logger *zap.Logger
}

// NewPreferencesService creates a new PreferencesService
func NewPreferencesService(repo PreferencesStore, logger *zap.Logger) *PreferencesService {
	return &PreferencesService{
		repo:   repo,
		logger: logger,
	}
}

// Get retrieves a user's preferences, defaults included
func (s *PreferencesService) Get(ctx context.Context, userID string) (*model.UserPreferences, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	return s.repo.Get(ctx, userID)
}

// Update stores a user's preferences
func (s *PreferencesService) Update(ctx context.Context, userID string, prefs *model.UserPreferences) error {
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}
	if prefs.DataRetentionDays <= 0 {
		return fmt.Errorf("data retention days must be positive, got %d", prefs.DataRetentionDays)
	}

	prefs.UserID = userID
	prefs.UpdatedAt = time.Now()

	if err := s.repo.Put(ctx, prefs); err != nil {
		s.logger.Error("failed to update preferences",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return fmt.Errorf("failed to update preferences: %w", err)
	}

	s.logger.Info("preferences updated", zap.String("user_id", userID))

	return nil
}
