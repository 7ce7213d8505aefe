package adherence

import "time"

// fixedClock pins the engine's notion of now for deterministic tests
type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

func (c fixedClock) Today() time.Time {
	return StartOfDay(c.now)
}
