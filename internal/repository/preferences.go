package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/healthpal/backend/pkg/model"
)

// PreferencesRepository manages per-user preference flags
type PreferencesRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPreferencesRepository creates a new PreferencesRepository
func NewPreferencesRepository(db *pgxpool.Pool, logger *zap.Logger) *PreferencesRepository {
	return &PreferencesRepository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a user's preferences, falling back to defaults when the
// user has never saved any
func (r *PreferencesRepository) Get(ctx context.Context, userID string) (*model.UserPreferences, error) {
	query := `
		SELECT user_id, enable_daily_symptom_check, show_streak_counter,
		       enable_push_notifications, quiet_hours_start, quiet_hours_end,
		       data_retention_days, updated_at
		FROM user_preferences
		WHERE user_id = $1
	`

	var prefs model.UserPreferences
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&prefs.UserID,
		&prefs.EnableDailySymptomCheck,
		&prefs.ShowStreakCounter,
		&prefs.EnablePushNotifications,
		&prefs.QuietHoursStart,
		&prefs.QuietHoursEnd,
		&prefs.DataRetentionDays,
		&prefs.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DefaultPreferences(userID), nil
		}
		r.logger.Error("failed to get preferences", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}

	return &prefs, nil
}

// Put stores a user's preferences, replacing any previous values
func (r *PreferencesRepository) Put(ctx context.Context, prefs *model.UserPreferences) error {
	query := `
		INSERT INTO user_preferences (
			user_id, enable_daily_symptom_check, show_streak_counter,
			enable_push_notifications, quiet_hours_start, quiet_hours_end,
			data_retention_days, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			enable_daily_symptom_check = EXCLUDED.enable_daily_symptom_check,
			show_streak_counter = EXCLUDED.show_streak_counter,
			enable_push_notifications = EXCLUDED.enable_push_notifications,
			quiet_hours_start = EXCLUDED.quiet_hours_start,
			quiet_hours_end = EXCLUDED.quiet_hours_end,
			data_retention_days = EXCLUDED.data_retention_days,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Exec(ctx, query,
		prefs.UserID,
		prefs.EnableDailySymptomCheck,
		prefs.ShowStreakCounter,
		prefs.EnablePushNotifications,
		prefs.QuietHoursStart,
		prefs.QuietHoursEnd,
		prefs.DataRetentionDays,
		prefs.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to put preferences", zap.Error(err), zap.String("user_id", prefs.UserID))
		return fmt.Errorf("failed to put preferences: %w", err)
	}

	return nil
}

// DefaultPreferences returns the privacy-first defaults for a user
func DefaultPreferences(userID string) *model.UserPreferences {
	return &model.UserPreferences{
		UserID:                  userID,
		EnableDailySymptomCheck: true,
		ShowStreakCounter:       true,
		EnablePushNotifications: true,
		DataRetentionDays:       365,
	}
}
