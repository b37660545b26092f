package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/agendafacil/booking-platform/pkg/logging"
)

// ServiceInfo is the read-only view of a catalog service the engine needs.
type ServiceInfo struct {
	ID              string
	DurationMinutes int
	Active          bool
}

// ServiceResolver resolves a service scoped to a business. Implementations
// return an error satisfying errors.Is(err, catalog.ErrServiceNotFound) when
// the service does not exist or belongs to another business.
type ServiceResolver interface {
	ResolveService(ctx context.Context, businessID, serviceID string) (ServiceInfo, error)
}

// HoursProvider loads the configured week of a business.
type HoursProvider interface {
	WeekFor(ctx context.Context, businessID string) (*WeekSchedule, error)
}

// Slot is a candidate start instant annotated with availability, so UIs can
// render occupied slots instead of hiding them.
type Slot struct {
	StartUTC  time.Time `json:"start_utc"`
	Available bool      `json:"available"`
}

// Availability derives bookable slots for a (business, service, day) triple.
// It is read-only and advisory: listing a slot reserves nothing, and the
// booking write path re-checks conflicts authoritatively.
type Availability struct {
	hours           HoursProvider
	services        ServiceResolver
	detector        *ConflictDetector
	defaultFillDays bool
	defaultStep     int
	now             func() time.Time
	logger          *logging.Logger
}

// NewAvailability wires the availability service.
func NewAvailability(hours HoursProvider, services ServiceResolver, detector *ConflictDetector, defaultFillDays bool, logger *logging.Logger) *Availability {
	if hours == nil {
		panic("schedule: hours provider required")
	}
	if services == nil {
		panic("schedule: service resolver required")
	}
	if detector == nil {
		panic("schedule: conflict detector required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Availability{
		hours:           hours,
		services:        services,
		detector:        detector,
		defaultFillDays: defaultFillDays,
		defaultStep:     DefaultStepMinutes,
		now:             func() time.Time { return time.Now().UTC() },
		logger:          logger,
	}
}

// WithClock overrides the time source. Tests use it to pin "now".
func (a *Availability) WithClock(now func() time.Time) *Availability {
	a.now = now
	return a
}

// WithDefaultStep overrides the grid step used when a request does not name
// one (env SLOT_STEP_MINUTES). Values <= 0 are ignored.
func (a *Availability) WithDefaultStep(minutes int) *Availability {
	if minutes > 0 {
		a.defaultStep = minutes
	}
	return a
}

// ListBookableSlots returns the free start instants for the day, ascending.
// An inactive service yields an empty list; a missing one yields the
// resolver's not-found error.
func (a *Availability) ListBookableSlots(ctx context.Context, businessID, serviceID string, date LocalDate, stepMinutes int) ([]time.Time, error) {
	annotated, err := a.ListSlotsWithAvailability(ctx, businessID, serviceID, date, stepMinutes)
	if err != nil {
		return nil, err
	}
	free := make([]time.Time, 0, len(annotated))
	for _, slot := range annotated {
		if slot.Available {
			free = append(free, slot.StartUTC)
		}
	}
	return free, nil
}

// ListSlotsWithAvailability returns every grid slot of the day annotated
// with availability.
func (a *Availability) ListSlotsWithAvailability(ctx context.Context, businessID, serviceID string, date LocalDate, stepMinutes int) ([]Slot, error) {
	if stepMinutes <= 0 {
		stepMinutes = a.defaultStep
	}

	svc, err := a.services.ResolveService(ctx, businessID, serviceID)
	if err != nil {
		return nil, err
	}
	if !svc.Active {
		return []Slot{}, nil
	}

	week, err := a.hours.WeekFor(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("schedule: load hours: %w", err)
	}
	window, open := week.ResolveWindow(date.Weekday(), a.defaultFillDays)
	if !open {
		return []Slot{}, nil
	}

	candidates := GenerateSlots(date, window, svc.DurationMinutes, stepMinutes, a.now())
	slots := make([]Slot, 0, len(candidates))
	for _, start := range candidates {
		conflict, err := a.detector.HasConflict(ctx, businessID, start, svc.DurationMinutes, "")
		if err != nil {
			return nil, err
		}
		slots = append(slots, Slot{StartUTC: start, Available: !conflict})
	}

	a.logger.Debug("availability computed",
		"business_id", businessID,
		"service_id", serviceID,
		"date", date.String(),
		"slots", len(slots),
	)
	return slots, nil
}
