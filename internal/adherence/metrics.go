package adherence

import (
	"sort"
	"time"

	"github.com/healthpal/backend/pkg/model"
)

// neutralLevel is the midpoint substituted for symptom dimensions the
// patient did not report.
const neutralLevel = 3

// Wellness derives a single comparable wellness score from a symptom
// entry's pain, fatigue and mood levels. Pain and fatigue are inverted
// onto the wellness scale since higher values are worse; mood is used
// as-is. Absent dimensions default to the neutral midpoint, so partial
// entries still score. The second return value is false when all three
// dimensions are absent and no score exists.
func Wellness(entry *model.SymptomEntry) (float64, bool) {
	if !entry.HasAnySymptoms() {
		return 0, false
	}

	pain := neutralLevel
	if entry.PainLevel != nil {
		pain = 6 - *entry.PainLevel
	}
	fatigue := neutralLevel
	if entry.FatigueLevel != nil {
		fatigue = 6 - *entry.FatigueLevel
	}
	mood := neutralLevel
	if entry.MoodLevel != nil {
		mood = *entry.MoodLevel
	}

	return float64(pain+fatigue+mood) / 3.0, true
}

// AdherenceStreak counts consecutive calendar days ending at asOf where
// at least one dose was taken. Multiple taken records on the same day
// count once. The walk stops at the first day with no taken record, so
// a day without one yields a streak of zero even if earlier days had
// taken doses.
func AdherenceStreak(records []model.AdherenceRecord, asOf time.Time) int {
	// Days are keyed by calendar date so records loaded in a different
	// location still match.
	takenDays := make(map[string]struct{})
	for i := range records {
		if records[i].Status != model.StatusTaken {
			continue
		}
		takenDays[dayKey(records[i].ScheduledDate)] = struct{}{}
	}

	streak := 0
	day := StartOfDay(asOf)
	for {
		if _, ok := takenDays[dayKey(day)]; !ok {
			break
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}

	return streak
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// TakenDaysDescending returns the distinct days with at least one taken
// record, newest first. Useful for rendering streak calendars.
func TakenDaysDescending(records []model.AdherenceRecord) []time.Time {
	seen := make(map[string]struct{})
	var days []time.Time
	for i := range records {
		if records[i].Status != model.StatusTaken {
			continue
		}
		day := StartOfDay(records[i].ScheduledDate)
		if _, ok := seen[dayKey(day)]; ok {
			continue
		}
		seen[dayKey(day)] = struct{}{}
		days = append(days, day)
	}

	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	return days
}
