package model

import "time"

// ScheduleType represents how a medication's reminders recur
type ScheduleType string

const (
	ScheduleTypeDaily    ScheduleType = "daily"
	ScheduleTypeWeekdays ScheduleType = "weekdays"
	ScheduleTypeWeekends ScheduleType = "weekends"
	ScheduleTypeCustom   ScheduleType = "custom"
	ScheduleTypeAsNeeded ScheduleType = "as_needed" // PRN, never scheduled
)

// MedicationShape represents the physical form of a medication,
// used for visual identification only
type MedicationShape string

const (
	ShapePill      MedicationShape = "pill"
	ShapeCapsule   MedicationShape = "capsule"
	ShapeLiquid    MedicationShape = "liquid"
	ShapeInjection MedicationShape = "injection"
	ShapePatch     MedicationShape = "patch"
	ShapeInhaler   MedicationShape = "inhaler"
	ShapeDrops     MedicationShape = "drops"
)

// AdherenceStatus represents the outcome of a single scheduled dose.
// Exactly one status is active on a record at a time.
type AdherenceStatus string

const (
	StatusPending AdherenceStatus = "pending"
	StatusTaken   AdherenceStatus = "taken"
	StatusMissed  AdherenceStatus = "missed"
	StatusSnoozed AdherenceStatus = "snoozed"
	StatusSkipped AdherenceStatus = "skipped" // intentionally skipped, e.g. doctor's advice
)

// DelayReason captures why a patient snoozed a dose
type DelayReason string

const (
	DelayPain         DelayReason = "pain"
	DelayFatigue      DelayReason = "fatigue"
	DelayNausea       DelayReason = "nausea"
	DelayForgotAtHome DelayReason = "forgot_at_home"
	DelayInMeeting    DelayReason = "in_meeting"
	DelaySleeping     DelayReason = "sleeping"
	DelaySideEffects  DelayReason = "side_effects"
	DelayNoWater      DelayReason = "no_water"
	DelayOther        DelayReason = "other"
)

// IsSymptomRelated reports whether the delay reason points at a symptom flare
func (r DelayReason) IsSymptomRelated() bool {
	switch r {
	case DelayPain, DelayFatigue, DelayNausea, DelaySideEffects:
		return true
	}
	return false
}

// MissReason captures why a dose was missed entirely
type MissReason string

const (
	MissForgot       MissReason = "forgot"
	MissRanOut       MissReason = "ran_out"
	MissSideEffects  MissReason = "side_effects"
	MissFeltBetter   MissReason = "felt_better"
	MissTooSick      MissReason = "too_sick"
	MissNoAccess     MissReason = "no_access"
	MissDoctorAdvice MissReason = "doctor_advice"
	MissOther        MissReason = "other"
)

// RequiresAttention reports whether the miss reason should be surfaced
// to a caregiver or provider
func (r MissReason) RequiresAttention() bool {
	switch r {
	case MissRanOut, MissSideEffects, MissTooSick, MissNoAccess:
		return true
	}
	return false
}

// EntryMethod represents how a status or symptom entry was recorded
type EntryMethod string

const (
	EntryManual    EntryMethod = "manual"
	EntryQuickTap  EntryMethod = "quick_tap"
	EntryVoice     EntryMethod = "voice"
	EntryWidget    EntryMethod = "widget"
	EntryReminder  EntryMethod = "reminder_response"
	EntryAutomatic EntryMethod = "automatic"
)

// ReminderSlot is a single time-of-day reminder owned by a medication.
// CustomDays holds weekday values 1-7 (1=Sunday) and is only consulted
// for medications with a custom schedule.
type ReminderSlot struct {
	ID           string `json:"id"`
	MedicationID string `json:"medication_id"`
	Hour         int    `json:"hour"`   // 0-23
	Minute       int    `json:"minute"` // 0-59
	Enabled      bool   `json:"enabled"`
	CustomDays   []int  `json:"custom_days,omitempty"`
}

// Medication represents a medication and its reminder schedule
type Medication struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Name            string          `json:"name"`
	Dosage          string          `json:"dosage"`
	Instructions    string          `json:"instructions,omitempty"`
	ScheduleType    ScheduleType    `json:"schedule_type"`
	ReminderSlots   []ReminderSlot  `json:"reminder_slots"`
	AllowSnooze     bool            `json:"allow_snooze"`
	SnoozeIntervals []int           `json:"snooze_intervals"` // minutes
	Color           string          `json:"color"`
	Shape           MedicationShape `json:"shape"`
	Active          bool            `json:"active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// SnoozeEvent is an immutable entry in a record's snooze history
type SnoozeEvent struct {
	ID              string       `json:"id"`
	Timestamp       time.Time    `json:"timestamp"`
	DurationMinutes int          `json:"duration_minutes"`
	Reason          *DelayReason `json:"reason,omitempty"`
}

// AdherenceRecord is the logged outcome (or pending state) of one
// scheduled dose occurrence. MedicationID is a weak reference: records
// survive independently of their medication for historical reporting.
type AdherenceRecord struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	MedicationID    string          `json:"medication_id"`
	ScheduledDate   time.Time       `json:"scheduled_date"` // day granularity
	ScheduledTime   time.Time       `json:"scheduled_time"` // slot-minute precision
	Status          AdherenceStatus `json:"status"`
	ActualTakenTime *time.Time      `json:"actual_taken_time,omitempty"`
	LoggedTime      time.Time       `json:"logged_time"`
	DelayReason     *DelayReason    `json:"delay_reason,omitempty"`
	MissReason      *MissReason     `json:"miss_reason,omitempty"`
	Notes           *string         `json:"notes,omitempty"`
	SnoozeCount     int             `json:"snooze_count"`
	SnoozeHistory   []SnoozeEvent   `json:"snooze_history,omitempty"`
	EntryMethod     EntryMethod     `json:"entry_method"`
}

// SymptomEntry is a daily symptom self-report. At most one entry exists
// per user per calendar day. Levels use a 1-5 scale.
type SymptomEntry struct {
	ID           string      `json:"id"`
	UserID       string      `json:"user_id"`
	EntryDate    time.Time   `json:"entry_date"`              // day granularity
	PainLevel    *int        `json:"pain_level,omitempty"`    // 1 = minimal, 5 = severe
	FatigueLevel *int        `json:"fatigue_level,omitempty"` // 1 = energetic, 5 = exhausted
	MoodLevel    *int        `json:"mood_level,omitempty"`    // 1 = very low, 5 = very good
	Notes        *string     `json:"notes,omitempty"`
	Triggers     []string    `json:"triggers,omitempty"`
	EntryMethod  EntryMethod `json:"entry_method"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// HasAnySymptoms reports whether any of the three levels was recorded
func (e *SymptomEntry) HasAnySymptoms() bool {
	return e.PainLevel != nil || e.FatigueLevel != nil || e.MoodLevel != nil
}

// UserPreferences holds the per-user flags that gate application flows.
// The adherence core never reads these.
type UserPreferences struct {
	UserID                  string    `json:"user_id"`
	EnableDailySymptomCheck bool      `json:"enable_daily_symptom_check"`
	ShowStreakCounter       bool      `json:"show_streak_counter"`
	EnablePushNotifications bool      `json:"enable_push_notifications"`
	QuietHoursStart         *string   `json:"quiet_hours_start,omitempty"` // "HH:MM"
	QuietHoursEnd           *string   `json:"quiet_hours_end,omitempty"`
	DataRetentionDays       int       `json:"data_retention_days"`
	UpdatedAt               time.Time `json:"updated_at"`
}
