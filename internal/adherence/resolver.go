package adherence

import (
	"fmt"
	"sort"
	"time"

	"github.com/healthpal/backend/pkg/model"
)

// Weekday values use a fixed 1-7 encoding with Sunday as day 1, matching
// the encoding stored in ReminderSlot.CustomDays.
const (
	WeekdaySunday   = 1
	WeekdayMonday   = 2
	WeekdayFriday   = 6
	WeekdaySaturday = 7
)

// WeekdayOf returns the 1-7 weekday of a date
func WeekdayOf(date time.Time) int {
	return int(date.Weekday()) + 1
}

// ResolveDueSlots expands a medication's schedule into the reminder
// slots due on the given date, ordered by time of day ascending.
//
// An inactive medication is never due; that filter lives here and only
// here so callers cannot disagree about it. As-needed medications have
// no scheduled occurrences.
func ResolveDueSlots(med *model.Medication, date time.Time) ([]model.ReminderSlot, error) {
	if !med.Active {
		return nil, nil
	}
	if med.ScheduleType == model.ScheduleTypeAsNeeded {
		return nil, nil
	}

	weekday := WeekdayOf(date)

	var due []model.ReminderSlot
	for _, slot := range med.ReminderSlots {
		if !slot.Enabled {
			continue
		}

		ok, err := slotDueOn(med.ScheduleType, slot, weekday)
		if err != nil {
			return nil, err
		}
		if ok {
			due = append(due, slot)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		if due[i].Hour != due[j].Hour {
			return due[i].Hour < due[j].Hour
		}
		return due[i].Minute < due[j].Minute
	})

	return due, nil
}

func slotDueOn(scheduleType model.ScheduleType, slot model.ReminderSlot, weekday int) (bool, error) {
	switch scheduleType {
	case model.ScheduleTypeDaily:
		return true, nil
	case model.ScheduleTypeWeekdays:
		return weekday >= WeekdayMonday && weekday <= WeekdayFriday, nil
	case model.ScheduleTypeWeekends:
		return weekday == WeekdaySunday || weekday == WeekdaySaturday, nil
	case model.ScheduleTypeCustom:
		for _, day := range slot.CustomDays {
			if day < WeekdaySunday || day > WeekdaySaturday {
				return false, fmt.Errorf("%w: custom day %d outside 1-7 on slot %s", ErrInvalidInput, day, slot.ID)
			}
		}
		for _, day := range slot.CustomDays {
			if day == weekday {
				return true, nil
			}
		}
		return false, nil
	case model.ScheduleTypeAsNeeded:
		return false, nil
	default:
		return false, fmt.Errorf("%w: unknown schedule type %q", ErrInvalidInput, scheduleType)
	}
}

// ScheduledTimeFor combines a calendar date with a slot's time of day.
// Sub-minute fields are always zero.
func ScheduledTimeFor(date time.Time, slot model.ReminderSlot) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), slot.Hour, slot.Minute, 0, 0, date.Location())
}
