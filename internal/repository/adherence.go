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

// AdherenceRepository manages adherence records and their snooze
// history. Free-text notes are encrypted at rest.
type AdherenceRepository struct {
	db        *pgxpool.Pool
	encryptor *security.Encryptor
	logger    *zap.Logger
}

// NewAdherenceRepository creates a new AdherenceRepository
func NewAdherenceRepository(db *pgxpool.Pool, encryptor *security.Encryptor, logger *zap.Logger) *AdherenceRepository {
	return &AdherenceRepository{
		db:        db,
		encryptor: encryptor,
		logger:    logger,
	}
}

// CreateIfAbsent inserts a newly reconciled pending record. The table
// carries a uniqueness constraint on (medication_id, scheduled_time) at
// minute precision, so a concurrent insert of the same occurrence loses
// the race cleanly: on conflict the already stored record is fetched
// and returned instead.
func (r *AdherenceRepository) CreateIfAbsent(ctx context.Context, record *model.AdherenceRecord) (*model.AdherenceRecord, error) {
	notes, err := r.encryptNotes(record.Notes)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO adherence_records (
			id, user_id, medication_id, scheduled_date, scheduled_time,
			status, actual_taken_time, logged_time, delay_reason,
			miss_reason, notes, snooze_count, entry_method
		) VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (medication_id, scheduled_time) DO NOTHING
	`

	result, err := r.db.Exec(ctx, query,
		record.ID,
		record.UserID,
		record.MedicationID,
		record.ScheduledDate,
		record.ScheduledTime,
		record.Status,
		record.ActualTakenTime,
		record.LoggedTime,
		record.DelayReason,
		record.MissReason,
		notes,
		record.SnoozeCount,
		record.EntryMethod,
	)
	if err != nil {
		r.logger.Error("failed to create adherence record",
			zap.Error(err),
			zap.String("record_id", record.ID),
			zap.String("medication_id", record.MedicationID),
		)
		return nil, fmt.Errorf("failed to create adherence record: %w", err)
	}

	if result.RowsAffected() == 0 {
		r.logger.Info("adherence record already exists for occurrence",
			zap.String("medication_id", record.MedicationID),
			zap.Time("scheduled_time", record.ScheduledTime),
		)
		return r.FindByOccurrence(ctx, record.MedicationID, record.ScheduledTime)
	}

	return record, nil
}

// FindByOccurrence retrieves the record for a (medication, scheduled
// time) occurrence, matching at minute granularity
func (r *AdherenceRepository) FindByOccurrence(ctx context.Context, medicationID string, scheduledTime time.Time) (*model.AdherenceRecord, error) {
	query := selectRecords + `
		WHERE medication_id = $1
		  AND date_trunc('minute', scheduled_time) = date_trunc('minute', $2::timestamptz)
	`

	row := r.db.QueryRow(ctx, query, medicationID, scheduledTime)
	record, err := r.scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: adherence record for medication %s at %s", adherence.ErrNotFound, medicationID, scheduledTime)
		}
		return nil, fmt.Errorf("failed to find adherence record: %w", err)
	}

	if err := r.loadSnoozeHistory(ctx, record); err != nil {
		return nil, err
	}

	return record, nil
}

// FindByID retrieves a record with its snooze history
func (r *AdherenceRepository) FindByID(ctx context.Context, recordID string) (*model.AdherenceRecord, error) {
	query := selectRecords + ` WHERE id = $1`

	row := r.db.QueryRow(ctx, query, recordID)
	record, err := r.scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: adherence record %s", adherence.ErrNotFound, recordID)
		}
		r.logger.Error("failed to find adherence record", zap.Error(err), zap.String("record_id", recordID))
		return nil, fmt.Errorf("failed to find adherence record: %w", err)
	}

	if err := r.loadSnoozeHistory(ctx, record); err != nil {
		return nil, err
	}

	return record, nil
}

// FindByUserAndDateRange retrieves a user's records scheduled within
// [from, to), ordered by scheduled time
func (r *AdherenceRepository) FindByUserAndDateRange(ctx context.Context, userID string, from, to time.Time) ([]model.AdherenceRecord, error) {
	query := selectRecords + `
		WHERE user_id = $1 AND scheduled_time >= $2 AND scheduled_time < $3
		ORDER BY scheduled_time
	`

	rows, err := r.db.Query(ctx, query, userID, from, to)
	if err != nil {
		r.logger.Error("failed to find adherence records", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to find adherence records: %w", err)
	}
	defer rows.Close()

	var records []model.AdherenceRecord
	for rows.Next() {
		record, err := r.scanRecord(rows)
		if err != nil {
			r.logger.Error("failed to scan adherence record", zap.Error(err))
			continue
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating adherence records: %w", err)
	}

	for i := range records {
		if err := r.loadSnoozeHistory(ctx, &records[i]); err != nil {
			return nil, err
		}
	}

	return records, nil
}

// Update persists a mutated record and appends any new snooze events.
// Snooze events are immutable and append-only; existing rows are never
// touched.
func (r *AdherenceRepository) Update(ctx context.Context, record *model.AdherenceRecord) error {
	notes, err := r.encryptNotes(record.Notes)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE adherence_records
		SET status = $1, actual_taken_time = $2, logged_time = $3,
		    delay_reason = $4, miss_reason = $5, notes = $6,
		    snooze_count = $7, entry_method = $8
		WHERE id = $9
	`

	result, err := tx.Exec(ctx, query,
		record.Status,
		record.ActualTakenTime,
		record.LoggedTime,
		record.DelayReason,
		record.MissReason,
		notes,
		record.SnoozeCount,
		record.EntryMethod,
		record.ID,
	)
	if err != nil {
		r.logger.Error("failed to update adherence record",
			zap.Error(err),
			zap.String("record_id", record.ID),
		)
		return fmt.Errorf("failed to update adherence record: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: adherence record %s", adherence.ErrNotFound, record.ID)
	}

	eventQuery := `
		INSERT INTO snooze_events (id, record_id, occurred_at, duration_minutes, reason)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`
	for _, event := range record.SnoozeHistory {
		_, err := tx.Exec(ctx, eventQuery,
			event.ID,
			record.ID,
			event.Timestamp,
			event.DurationMinutes,
			event.Reason,
		)
		if err != nil {
			return fmt.Errorf("failed to append snooze event: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit adherence record update: %w", err)
	}

	return nil
}

const selectRecords = `
	SELECT id, user_id, medication_id, scheduled_date, scheduled_time,
	       status, actual_taken_time, logged_time, delay_reason,
	       miss_reason, notes, snooze_count, entry_method
	FROM adherence_records
`

func (r *AdherenceRepository) scanRecord(row pgx.Row) (*model.AdherenceRecord, error) {
	var record model.AdherenceRecord
	var notes *string
	err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.MedicationID,
		&record.ScheduledDate,
		&record.ScheduledTime,
		&record.Status,
		&record.ActualTakenTime,
		&record.LoggedTime,
		&record.DelayReason,
		&record.MissReason,
		&notes,
		&record.SnoozeCount,
		&record.EntryMethod,
	)
	if err != nil {
		return nil, err
	}

	record.Notes, err = r.decryptNotes(notes)
	if err != nil {
		return nil, err
	}

	return &record, nil
}

func (r *AdherenceRepository) loadSnoozeHistory(ctx context.Context, record *model.AdherenceRecord) error {
	query := `
		SELECT id, occurred_at, duration_minutes, reason
		FROM snooze_events
		WHERE record_id = $1
		ORDER BY occurred_at
	`

	rows, err := r.db.Query(ctx, query, record.ID)
	if err != nil {
		return fmt.Errorf("failed to load snooze history: %w", err)
	}
	defer rows.Close()

	record.SnoozeHistory = nil
	for rows.Next() {
		var event model.SnoozeEvent
		if err := rows.Scan(&event.ID, &event.Timestamp, &event.DurationMinutes, &event.Reason); err != nil {
			return fmt.Errorf("failed to scan snooze event: %w", err)
		}
		record.SnoozeHistory = append(record.SnoozeHistory, event)
	}

	return rows.Err()
}

func (r *AdherenceRepository) encryptNotes(notes *string) (*string, error) {
	if notes == nil {
		return nil, nil
	}
	encrypted, err := r.encryptor.Encrypt(*notes)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt notes: %w", err)
	}
	return &encrypted, nil
}

func (r *AdherenceRepository) decryptNotes(notes *string) (*string, error) {
	if notes == nil {
		return nil, nil
	}
	decrypted, err := r.encryptor.Decrypt(*notes)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt notes: %w", err)
	}
	return &decrypted, nil
}
