package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/healthpal/backend/internal/adherence"
	"github.com/healthpal/backend/pkg/model"
)

// ProgressRecordStore is the read-only record access the progress
// service needs
type ProgressRecordStore interface {
	FindByUserAndDateRange(ctx context.Context, userID string, from, to time.Time) ([]model.AdherenceRecord, error)
}

// ProgressService derives read-only adherence and wellness aggregates
// from historical records
type ProgressService struct {
	records  ProgressRecordStore
	symptoms SymptomStore
	clock    adherence.Clock
	logger   *zap.Logger
}

// NewProgressService creates a new ProgressService
func NewProgressService(records ProgressRecordStore, symptoms SymptomStore, clock adherence.Clock, logger *zap.Logger) *ProgressService {
	return &ProgressService{
		records:  records,
		symptoms: symptoms,
		clock:    clock,
		logger:   logger,
	}
}

// DailyWellness is one point on the wellness time series
type DailyWellness struct {
	Date     time.Time `json:"date"`
	Score    float64   `json:"score"`
	HasEntry bool      `json:"has_entry"`
}

// ProgressSummary aggregates adherence and wellness over a period
type ProgressSummary struct {
	Period         string          `json:"period"`
	StatusCounts   map[string]int  `json:"status_counts"`
	AdherenceRate  float64         `json:"adherence_rate"`
	OnTimeCount    int             `json:"on_time_count"`
	AverageDelay   float64         `json:"average_delay_minutes"`
	CurrentStreak  int             `json:"current_streak"`
	WellnessSeries []DailyWellness `json:"wellness_series"`
}

// GetSummary aggregates the trailing N days of adherence and symptom
// history into a single summary
func (s *ProgressService) GetSummary(ctx context.Context, userID string, days int) (*ProgressSummary, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	// Validate days parameter
	if days != 7 && days != 30 && days != 90 {
		s.logger.Warn("invalid days parameter, defaulting to 7",
			zap.Int("days", days),
		)
		days = 7
	}

	today := s.clock.Today()
	from := today.AddDate(0, 0, -(days - 1))
	to := today.AddDate(0, 0, 1)

	records, err := s.records.FindByUserAndDateRange(ctx, userID, from, to)
	if err != nil {
		s.logger.Error("failed to load adherence records for summary",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return nil, fmt.Errorf("failed to load adherence records: %w", err)
	}

	entries, err := s.symptoms.FindByUserAndDateRange(ctx, userID, from, to)
	if err != nil {
		s.logger.Error("failed to load symptom entries for summary",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return nil, fmt.Errorf("failed to load symptom entries: %w", err)
	}

	summary := &ProgressSummary{
		Period:         fmt.Sprintf("%d days", days),
		StatusCounts:   make(map[string]int),
		CurrentStreak:  adherence.AdherenceStreak(records, today),
		WellnessSeries: wellnessSeries(entries),
	}

	resolved := 0
	taken := 0
	totalDelay := 0
	for i := range records {
		record := &records[i]
		summary.StatusCounts[string(record.Status)]++

		if record.Status == model.StatusPending {
			continue
		}
		resolved++
		if record.Status == model.StatusTaken {
			taken++
			totalDelay += adherence.DelayMinutes(record)
			if adherence.IsOnTime(record) {
				summary.OnTimeCount++
			}
		}
	}

	if resolved > 0 {
		summary.AdherenceRate = float64(taken) / float64(resolved)
	}
	if taken > 0 {
		summary.AverageDelay = float64(totalDelay) / float64(taken)
	}

	s.logger.Info("progress summary computed",
		zap.String("user_id", userID),
		zap.Int("days", days),
		zap.Int("record_count", len(records)),
		zap.Int("current_streak", summary.CurrentStreak),
	)

	return summary, nil
}

func wellnessSeries(entries []model.SymptomEntry) []DailyWellness {
	series := make([]DailyWellness, 0, len(entries))
	for i := range entries {
		score, ok := adherence.Wellness(&entries[i])
		series = append(series, DailyWellness{
			Date:     entries[i].EntryDate,
			Score:    score,
			HasEntry: ok,
		})
	}
	return series
}
