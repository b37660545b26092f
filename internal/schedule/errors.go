package schedule

import "errors"

var (
	// ErrInvalidWindow is returned when a day window has open >= close or
	// minutes outside 0..1439.
	ErrInvalidWindow = errors.New("schedule: open must be before close, within 00:00-23:59")

	// ErrInvalidWeekday is returned for weekday values outside Sunday..Saturday.
	ErrInvalidWeekday = errors.New("schedule: weekday must be between 0 (Sunday) and 6 (Saturday)")

	// ErrInvalidStep is returned when the slot grid step is not positive.
	ErrInvalidStep = errors.New("schedule: step minutes must be positive")

	// ErrInvalidDate is returned when a local date string cannot be parsed.
	ErrInvalidDate = errors.New("schedule: date must be formatted as YYYY-MM-DD")
)
