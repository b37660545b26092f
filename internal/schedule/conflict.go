package schedule

import (
	"context"
	"fmt"
	"time"
)

// BookedInterval is an occupied interval owned by a business. Duration is
// the service duration captured when the appointment was created.
type BookedInterval struct {
	AppointmentID   string
	StartUTC        time.Time
	DurationMinutes int
}

// End returns the half-open interval end.
func (b BookedInterval) End() time.Time {
	return b.StartUTC.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

// AppointmentSource lists the non-cancelled appointments of a business that
// start before the given instant. The pre-filter keeps the overlap scan
// cheap; the (business_id, scheduled_at) index backs it.
type AppointmentSource interface {
	ListNonCancelled(ctx context.Context, businessID string, beforeUTC time.Time) ([]BookedInterval, error)
}

// ConflictDetector answers whether a candidate interval overlaps an existing
// non-cancelled appointment of the same business.
type ConflictDetector struct {
	appointments AppointmentSource
}

// NewConflictDetector creates a detector over the given source.
func NewConflictDetector(appointments AppointmentSource) *ConflictDetector {
	if appointments == nil {
		panic("schedule: appointment source required")
	}
	return &ConflictDetector{appointments: appointments}
}

// HasConflict reports whether [startUTC, startUTC+duration) overlaps any
// non-cancelled appointment of the business. Intervals are half-open, so an
// appointment ending exactly at startUTC does not conflict. excludeID, when
// non-empty, skips one appointment (re-checks during an update).
func (d *ConflictDetector) HasConflict(ctx context.Context, businessID string, startUTC time.Time, durationMinutes int, excludeID string) (bool, error) {
	candidateEnd := startUTC.Add(time.Duration(durationMinutes) * time.Minute)

	existing, err := d.appointments.ListNonCancelled(ctx, businessID, candidateEnd)
	if err != nil {
		return false, fmt.Errorf("schedule: list appointments: %w", err)
	}

	for _, booked := range existing {
		if excludeID != "" && booked.AppointmentID == excludeID {
			continue
		}
		// The source already guarantees booked.StartUTC < candidateEnd.
		if booked.End().After(startUTC) {
			return true, nil
		}
	}
	return false, nil
}
