package appointments

import "errors"

var (
	// ErrSlotConflict is returned when the requested interval overlaps an
	// existing non-cancelled appointment. Callers should re-query
	// availability rather than retry blindly.
	ErrSlotConflict = errors.New("appointments: requested time conflicts with an existing appointment")

	// ErrNotFound is returned when an appointment or cancel token does not
	// exist. Already-cancelled tokens report the same error so an anonymous
	// caller cannot probe for past bookings.
	ErrNotFound = errors.New("appointments: not found")

	// ErrPastTime is returned when the requested instant is further in the
	// past than the clock-skew tolerance.
	ErrPastTime = errors.New("appointments: scheduled time is in the past")

	// ErrServiceInactive is returned when booking a deactivated service.
	ErrServiceInactive = errors.New("appointments: service is inactive")

	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("appointments: invalid request")

	// ErrUnavailable is returned when storage could not complete the
	// operation; nothing was written and the caller may retry after
	// re-checking availability.
	ErrUnavailable = errors.New("appointments: storage unavailable")
)
