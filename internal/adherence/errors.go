package adherence

import "errors"

// Sentinel errors returned by the engine. All are recoverable at the
// call site: the caller surfaces a message and leaves prior state
// unchanged.
var (
	// ErrInvalidInput marks input rejected at the engine boundary,
	// such as a non-positive snooze duration or a custom weekday
	// outside 1-7. Invalid values are never silently coerced.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound marks a lookup for a record, medication or entry
	// that does not exist in storage.
	ErrNotFound = errors.New("not found")

	// ErrInconsistentRecord marks a record whose status and
	// actual-taken time disagree. Engine mutations never produce such
	// a record; encountering one means the stored data is corrupted.
	ErrInconsistentRecord = errors.New("inconsistent adherence record")
)
