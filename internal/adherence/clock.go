package adherence

import "time"

// Clock supplies the current time to the engine. Injectable so tests and
// callers replaying history can supply fixed timestamps.
type Clock interface {
	Now() time.Time
	Today() time.Time
}

// SystemClock is the production Clock backed by the system time
type SystemClock struct{}

// Now returns the current instant
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Today returns the current day truncated to midnight local time
func (SystemClock) Today() time.Time {
	return StartOfDay(time.Now())
}

// StartOfDay normalizes a timestamp to day granularity in its location
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
