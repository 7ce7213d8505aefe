package adherence

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/healthpal/backend/pkg/model"
)

// OnTimeWindow is how far an actual taken time may drift from the
// scheduled time and still count as on time.
const OnTimeWindow = 30 * time.Minute

// MarkTaken transitions a record to taken. Legal from any status: a
// patient may correct a missed or skipped dose at any later time.
// Notes are only replaced when provided.
func MarkTaken(record *model.AdherenceRecord, at time.Time, method model.EntryMethod, notes *string, clock Clock) {
	record.Status = model.StatusTaken
	record.ActualTakenTime = &at
	record.LoggedTime = clock.Now()
	record.EntryMethod = method
	if notes != nil {
		record.Notes = notes
	}
}

// MarkMissed transitions a record to missed with the given reason.
// Legal from any status.
func MarkMissed(record *model.AdherenceRecord, reason model.MissReason, notes *string, clock Clock) {
	record.Status = model.StatusMissed
	record.MissReason = &reason
	record.ActualTakenTime = nil
	record.LoggedTime = clock.Now()
	if notes != nil {
		record.Notes = notes
	}
}

// AddSnooze appends a snooze event and transitions the record to
// snoozed. The duration must be positive; an invalid duration is
// rejected, never clamped. Snoozing is legal from any status, including
// taken: the patient may annotate a dose as having been delayed after
// the fact.
func AddSnooze(record *model.AdherenceRecord, durationMinutes int, reason *model.DelayReason, clock Clock) error {
	if durationMinutes <= 0 {
		return fmt.Errorf("%w: snooze duration must be positive, got %d", ErrInvalidInput, durationMinutes)
	}

	event := model.SnoozeEvent{
		ID:              uuid.New().String(),
		Timestamp:       clock.Now(),
		DurationMinutes: durationMinutes,
		Reason:          reason,
	}
	record.SnoozeHistory = append(record.SnoozeHistory, event)
	record.SnoozeCount++
	record.DelayReason = reason
	record.Status = model.StatusSnoozed
	record.ActualTakenTime = nil
	record.LoggedTime = clock.Now()

	return nil
}

// MarkSkipped transitions a record to intentionally skipped
func MarkSkipped(record *model.AdherenceRecord, notes *string, clock Clock) {
	record.Status = model.StatusSkipped
	record.ActualTakenTime = nil
	record.LoggedTime = clock.Now()
	if notes != nil {
		record.Notes = notes
	}
}

// IsOnTime reports whether a taken record was taken within the on-time
// window of its scheduled time
func IsOnTime(record *model.AdherenceRecord) bool {
	if record.Status != model.StatusTaken || record.ActualTakenTime == nil {
		return false
	}
	diff := record.ActualTakenTime.Sub(record.ScheduledTime)
	if diff < 0 {
		diff = -diff
	}
	return diff <= OnTimeWindow
}

// DelayMinutes returns how many whole minutes after the scheduled time
// the dose was taken, or 0 for doses not taken or taken early
func DelayMinutes(record *model.AdherenceRecord) int {
	if record.Status != model.StatusTaken || record.ActualTakenTime == nil {
		return 0
	}
	delay := record.ActualTakenTime.Sub(record.ScheduledTime)
	if delay < 0 {
		return 0
	}
	return int(delay / time.Minute)
}

// Validate checks a record loaded from external data for internal
// consistency. Engine mutations never produce an inconsistent record,
// so a failure here means corrupted storage, not a bug to paper over.
func Validate(record *model.AdherenceRecord) error {
	if record.Status == model.StatusTaken && record.ActualTakenTime == nil {
		return fmt.Errorf("%w: record %s is taken without an actual taken time", ErrInconsistentRecord, record.ID)
	}
	if record.Status != model.StatusTaken && record.ActualTakenTime != nil {
		return fmt.Errorf("%w: record %s has status %s with an actual taken time", ErrInconsistentRecord, record.ID, record.Status)
	}
	if record.SnoozeCount < 0 {
		return fmt.Errorf("%w: record %s has negative snooze count", ErrInconsistentRecord, record.ID)
	}
	if record.SnoozeCount != len(record.SnoozeHistory) {
		return fmt.Errorf("%w: record %s snooze count %d does not match history length %d",
			ErrInconsistentRecord, record.ID, record.SnoozeCount, len(record.SnoozeHistory))
	}
	return nil
}
