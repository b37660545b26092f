package schedule

import "time"

// DefaultStepMinutes is the candidate grid step when callers pass none.
const DefaultStepMinutes = 30

// GenerateSlots walks the window from open to close in step increments and
// returns the UTC start instants whose full duration fits inside the window.
// Candidates strictly before now are dropped; past slots are never offered.
//
// The walk is pure: it does not consult the appointment store, so two calls
// with the same inputs always agree.
func GenerateSlots(date LocalDate, window DayWindow, durationMinutes, stepMinutes int, now time.Time) []time.Time {
	if durationMinutes <= 0 || stepMinutes <= 0 {
		return nil
	}
	if window.CloseMinutes-window.OpenMinutes < durationMinutes {
		return nil
	}

	var slots []time.Time
	for m := window.OpenMinutes; m+durationMinutes <= window.CloseMinutes; m += stepMinutes {
		start := date.At(m)
		if start.Before(now) {
			continue
		}
		slots = append(slots, start)
	}
	return slots
}
