package avatar

import "errors"

var (
	// ErrUnknownMood is returned when a mood name is not registered.
	ErrUnknownMood = errors.New("mood not found")

	// ErrInvalidMood is returned when a mood definition is malformed.
	ErrInvalidMood = errors.New("invalid mood data")

	// ErrDuplicateBinding is returned when a key is bound twice.
	ErrDuplicateBinding = errors.New("key bound more than once")

	// ErrInvalidConfig is returned when resolver tuning values are unusable.
	ErrInvalidConfig = errors.New("invalid avatar config")
)
