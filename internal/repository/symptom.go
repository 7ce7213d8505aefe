package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/healthpal/backend/internal/adherence"
	"github.com/healthpal/backend/internal/security"
	"github.com/healthpal/backend/pkg/model"
)

// SymptomRepository manages daily symptom entries. The table enforces
// at most one entry per user per calendar day; notes are encrypted at
// rest.
type SymptomRepository struct {
	db        *pgxpool.Pool
	encryptor *security.Encryptor
	logger    *zap.Logger
}

// NewSymptomRepository creates a new SymptomRepository
func NewSymptomRepository(db *pgxpool.Pool, encryptor *security.Encryptor, logger *zap.Logger) *SymptomRepository {
	return &SymptomRepository{
		db:        db,
		encryptor: encryptor,
		logger:    logger,
	}
}

// Upsert stores a symptom entry, replacing the existing entry for the
// same user and day if one exists
func (r *SymptomRepository) Upsert(ctx context.Context, entry *model.SymptomEntry) error {
	var notes *string
	if entry.Notes != nil {
		encrypted, err := r.encryptor.Encrypt(*entry.Notes)
		if err != nil {
			return fmt.Errorf("failed to encrypt notes: %w", err)
		}
		notes = &encrypted
	}

	query := `
		INSERT INTO symptom_entries (
			id, user_id, entry_date, pain_level, fatigue_level, mood_level,
			notes, triggers, entry_method, created_at, updated_at
		) VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, entry_date) DO UPDATE SET
			pain_level = EXCLUDED.pain_level,
			fatigue_level = EXCLUDED.fatigue_level,
			mood_level = EXCLUDED.mood_level,
			notes = EXCLUDED.notes,
			triggers = EXCLUDED.triggers,
			entry_method = EXCLUDED.entry_method,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.UserID,
		entry.EntryDate,
		entry.PainLevel,
		entry.FatigueLevel,
		entry.MoodLevel,
		notes,
		entry.Triggers,
		entry.EntryMethod,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to upsert symptom entry",
			zap.Error(err),
			zap.String("user_id", entry.UserID),
			zap.Time("entry_date", entry.EntryDate),
		)
		return fmt.Errorf("failed to upsert symptom entry: %w", err)
	}

	return nil
}

// FindByUserAndDate retrieves the single entry for a user on a day
func (r *SymptomRepository) FindByUserAndDate(ctx context.Context, userID string, date time.Time) (*model.SymptomEntry, error) {
	query := selectSymptomEntries + ` WHERE user_id = $1 AND entry_date = $2::date`

	row := r.db.QueryRow(ctx, query, userID, date)
	entry, err := r.scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: symptom entry for %s on %s", adherence.ErrNotFound, userID, date.Format("2006-01-02"))
		}
		r.logger.Error("failed to find symptom entry", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to find symptom entry: %w", err)
	}

	return entry, nil
}

// FindByUserAndDateRange retrieves entries within [from, to), oldest
// first
func (r *SymptomRepository) FindByUserAndDateRange(ctx context.Context, userID string, from, to time.Time) ([]model.SymptomEntry, error) {
	query := selectSymptomEntries + `
		WHERE user_id = $1 AND entry_date >= $2::date AND entry_date < $3::date
		ORDER BY entry_date
	`

	rows, err := r.db.Query(ctx, query, userID, from, to)
	if err != nil {
		r.logger.Error("failed to find symptom entries", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to find symptom entries: %w", err)
	}
	defer rows.Close()

	var entries []model.SymptomEntry
	for rows.Next() {
		entry, err := r.scanEntry(rows)
		if err != nil {
			r.logger.Error("failed to scan symptom entry", zap.Error(err))
			continue
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symptom entries: %w", err)
	}

	return entries, nil
}

const selectSymptomEntries = `
	SELECT id, user_id, entry_date, pain_level, fatigue_level, mood_level,
	       notes, triggers, entry_method, created_at, updated_at
	FROM symptom_entries
`

func (r *SymptomRepository) scanEntry(row pgx.Row) (*model.SymptomEntry, error) {
	var entry model.SymptomEntry
	var notes *string
	err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.EntryDate,
		&entry.PainLevel,
		&entry.FatigueLevel,
		&entry.MoodLevel,
		&notes,
		&entry.Triggers,
		&entry.EntryMethod,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if notes != nil {
		decrypted, err := r.encryptor.Decrypt(*notes)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt notes: %w", err)
		}
		entry.Notes = &decrypted
	}

	return &entry, nil
}
