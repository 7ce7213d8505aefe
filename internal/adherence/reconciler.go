package adherence

import (
	"time"

	"github.com/google/uuid"
	"github.com/healthpal/backend/pkg/model"
)

// Reconcile matches a due slot occurrence against existing adherence
// records, building a new pending record when none matches. It returns
// the matched or newly built record and whether it was newly built; a
// new record has not been stored anywhere, the caller must persist it
// exactly once.
//
// Reconcile performs no storage and no locking. Concurrent
// reconciliation of the same (medication, slot, date) must be
// serialized by the caller, otherwise two pending records can be built
// for the same occurrence.
//
// Matching compares scheduled times at minute granularity. Slot
// construction always zeroes sub-minute fields, so this is a chosen
// tolerance rather than a rounding artifact.
func Reconcile(med *model.Medication, slot model.ReminderSlot, date time.Time, existing []model.AdherenceRecord, clock Clock) (*model.AdherenceRecord, bool) {
	scheduled := ScheduledTimeFor(date, slot)

	for i := range existing {
		if existing[i].MedicationID != med.ID {
			continue
		}
		if sameMinute(existing[i].ScheduledTime, scheduled) {
			return &existing[i], false
		}
	}

	record := &model.AdherenceRecord{
		ID:            uuid.New().String(),
		UserID:        med.UserID,
		MedicationID:  med.ID,
		ScheduledDate: StartOfDay(date),
		ScheduledTime: scheduled,
		Status:        model.StatusPending,
		LoggedTime:    clock.Now(),
		SnoozeCount:   0,
		EntryMethod:   model.EntryAutomatic,
	}

	return record, true
}

func sameMinute(a, b time.Time) bool {
	return a.Truncate(time.Minute).Equal(b.Truncate(time.Minute))
}
