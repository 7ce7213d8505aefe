package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/healthpal/backend/internal/adherence"
	"github.com/healthpal/backend/pkg/model"
)

// MedicationRepository manages medications and their reminder slots
type MedicationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewMedicationRepository creates a new MedicationRepository
func NewMedicationRepository(db *pgxpool.Pool, logger *zap.Logger) *MedicationRepository {
	return &MedicationRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a medication together with its reminder slots
func (r *MedicationRepository) Create(ctx context.Context, med *model.Medication) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO medications (
			id, user_id, name, dosage, instructions, schedule_type,
			allow_snooze, snooze_intervals, color, shape, active,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = tx.Exec(ctx, query,
		med.ID,
		med.UserID,
		med.Name,
		med.Dosage,
		med.Instructions,
		med.ScheduleType,
		med.AllowSnooze,
		med.SnoozeIntervals,
		med.Color,
		med.Shape,
		med.Active,
		med.CreatedAt,
		med.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to create medication",
			zap.Error(err),
			zap.String("medication_id", med.ID),
			zap.String("user_id", med.UserID),
		)
		return fmt.Errorf("failed to create medication: %w", err)
	}

	if err := r.insertSlots(ctx, tx, med.ID, med.ReminderSlots); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit medication: %w", err)
	}

	return nil
}

func (r *MedicationRepository) insertSlots(ctx context.Context, tx pgx.Tx, medicationID string, slots []model.ReminderSlot) error {
	query := `
		INSERT INTO reminder_slots (id, medication_id, hour, minute, enabled, custom_days)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, slot := range slots {
		_, err := tx.Exec(ctx, query,
			slot.ID,
			medicationID,
			slot.Hour,
			slot.Minute,
			slot.Enabled,
			slot.CustomDays,
		)
		if err != nil {
			r.logger.Error("failed to create reminder slot",
				zap.Error(err),
				zap.String("medication_id", medicationID),
				zap.String("slot_id", slot.ID),
			)
			return fmt.Errorf("failed to create reminder slot: %w", err)
		}
	}

	return nil
}

// FindByUserID retrieves all medications for a user with their slots,
// newest first
func (r *MedicationRepository) FindByUserID(ctx context.Context, userID string) ([]model.Medication, error) {
	query := `
		SELECT id, user_id, name, dosage, instructions, schedule_type,
		       allow_snooze, snooze_intervals, color, shape, active,
		       created_at, updated_at
		FROM medications
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("failed to find medications", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to find medications: %w", err)
	}
	defer rows.Close()

	var medications []model.Medication
	for rows.Next() {
		med, err := scanMedication(rows)
		if err != nil {
			r.logger.Error("failed to scan medication", zap.Error(err))
			continue
		}
		medications = append(medications, med)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating medications", zap.Error(err))
		return nil, fmt.Errorf("error iterating medications: %w", err)
	}

	for i := range medications {
		slots, err := r.findSlots(ctx, medications[i].ID)
		if err != nil {
			return nil, err
		}
		medications[i].ReminderSlots = slots
	}

	return medications, nil
}

// FindActiveByUserID retrieves a user's active medications with slots
func (r *MedicationRepository) FindActiveByUserID(ctx context.Context, userID string) ([]model.Medication, error) {
	medications, err := r.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	active := medications[:0]
	for _, med := range medications {
		if med.Active {
			active = append(active, med)
		}
	}

	return active, nil
}

// FindByID retrieves a medication by ID with its slots
func (r *MedicationRepository) FindByID(ctx context.Context, medicationID string) (*model.Medication, error) {
	query := `
		SELECT id, user_id, name, dosage, instructions, schedule_type,
		       allow_snooze, snooze_intervals, color, shape, active,
		       created_at, updated_at
		FROM medications
		WHERE id = $1
	`

	row := r.db.QueryRow(ctx, query, medicationID)
	med, err := scanMedication(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: medication %s", adherence.ErrNotFound, medicationID)
		}
		r.logger.Error("failed to find medication", zap.Error(err), zap.String("medication_id", medicationID))
		return nil, fmt.Errorf("failed to find medication: %w", err)
	}

	slots, err := r.findSlots(ctx, med.ID)
	if err != nil {
		return nil, err
	}
	med.ReminderSlots = slots

	return &med, nil
}

// Update replaces a medication row and its reminder slots
func (r *MedicationRepository) Update(ctx context.Context, med *model.Medication) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE medications
		SET name = $1, dosage = $2, instructions = $3, schedule_type = $4,
		    allow_snooze = $5, snooze_intervals = $6, color = $7, shape = $8,
		    active = $9, updated_at = $10
		WHERE id = $11
	`

	result, err := tx.Exec(ctx, query,
		med.Name,
		med.Dosage,
		med.Instructions,
		med.ScheduleType,
		med.AllowSnooze,
		med.SnoozeIntervals,
		med.Color,
		med.Shape,
		med.Active,
		med.UpdatedAt,
		med.ID,
	)
	if err != nil {
		r.logger.Error("failed to update medication",
			zap.Error(err),
			zap.String("medication_id", med.ID),
		)
		return fmt.Errorf("failed to update medication: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: medication %s", adherence.ErrNotFound, med.ID)
	}

	// Slots are owned by the medication, replace them wholesale
	if _, err := tx.Exec(ctx, `DELETE FROM reminder_slots WHERE medication_id = $1`, med.ID); err != nil {
		return fmt.Errorf("failed to replace reminder slots: %w", err)
	}
	if err := r.insertSlots(ctx, tx, med.ID, med.ReminderSlots); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit medication update: %w", err)
	}

	return nil
}

// Delete removes a medication and its slots. Historical adherence
// records reference the medication only by id and are retained.
func (r *MedicationRepository) Delete(ctx context.Context, medicationID string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM medications WHERE id = $1`, medicationID)
	if err != nil {
		r.logger.Error("failed to delete medication",
			zap.Error(err),
			zap.String("medication_id", medicationID),
		)
		return fmt.Errorf("failed to delete medication: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: medication %s", adherence.ErrNotFound, medicationID)
	}

	return nil
}

func (r *MedicationRepository) findSlots(ctx context.Context, medicationID string) ([]model.ReminderSlot, error) {
	query := `
		SELECT id, medication_id, hour, minute, enabled, custom_days
		FROM reminder_slots
		WHERE medication_id = $1
		ORDER BY hour, minute
	`

	rows, err := r.db.Query(ctx, query, medicationID)
	if err != nil {
		r.logger.Error("failed to find reminder slots", zap.Error(err), zap.String("medication_id", medicationID))
		return nil, fmt.Errorf("failed to find reminder slots: %w", err)
	}
	defer rows.Close()

	var slots []model.ReminderSlot
	for rows.Next() {
		var slot model.ReminderSlot
		err := rows.Scan(
			&slot.ID,
			&slot.MedicationID,
			&slot.Hour,
			&slot.Minute,
			&slot.Enabled,
			&slot.CustomDays,
		)
		if err != nil {
			r.logger.Error("failed to scan reminder slot", zap.Error(err))
			continue
		}
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reminder slots: %w", err)
	}

	return slots, nil
}

func scanMedication(row pgx.Row) (model.Medication, error) {
	var med model.Medication
	err := row.Scan(
		&med.ID,
		&med.UserID,
		&med.Name,
		&med.Dosage,
		&med.Instructions,
		&med.ScheduleType,
		&med.AllowSnooze,
		&med.SnoozeIntervals,
		&med.Color,
		&med.Shape,
		&med.Active,
		&med.CreatedAt,
		&med.UpdatedAt,
	)
	return med, err
}
