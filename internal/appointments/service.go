package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agendafacil/booking-platform/internal/catalog"
	"github.com/agendafacil/booking-platform/internal/schedule"
	"github.com/agendafacil/booking-platform/pkg/logging"
)

// Notifier tells the business owner about booking events. Failures are
// logged, never propagated: notifications are fire-and-forget.
type Notifier interface {
	BookingCreated(ctx context.Context, appt *Appointment)
	BookingCancelled(ctx context.Context, appt *Appointment)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) BookingCreated(context.Context, *Appointment)   {}
func (NopNotifier) BookingCancelled(context.Context, *Appointment) {}

// Service is the booking write path. The conflict pre-check here is
// advisory; the repository insert is the authoritative check-and-write unit.
type Service struct {
	store         Store
	catalog       catalog.Repository
	detector      *schedule.ConflictDetector
	notifier      Notifier
	logger        *logging.Logger
	now           func() time.Time
	pastTolerance time.Duration
}

// NewService wires the booking service. pastTolerance absorbs clock skew and
// submission latency; values <= 0 default to five minutes.
func NewService(store Store, cat catalog.Repository, notifier Notifier, pastTolerance time.Duration, logger *logging.Logger) *Service {
	if store == nil {
		panic("appointments: store required")
	}
	if cat == nil {
		panic("appointments: catalog required")
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	if pastTolerance <= 0 {
		pastTolerance = 5 * time.Minute
	}
	return &Service{
		store:         store,
		catalog:       cat,
		detector:      schedule.NewConflictDetector(store),
		notifier:      notifier,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
		pastTolerance: pastTolerance,
	}
}

// WithClock overrides the time source for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create validates, re-checks the conflict, and persists the appointment.
// Dashboard bookings start Pending; public and WhatsApp bookings are
// auto-confirmed, and public ones carry a single-use cancel token.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Appointment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	svc, err := s.catalog.GetService(ctx, req.BusinessID, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if !svc.Active {
		return nil, ErrServiceInactive
	}

	scheduledAt := req.ScheduledAt.UTC()
	if scheduledAt.Before(s.now().Add(-s.pastTolerance)) {
		return nil, ErrPastTime
	}

	conflict, err := s.detector.HasConflict(ctx, req.BusinessID, scheduledAt, svc.DurationMinutes, "")
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, ErrSlotConflict
	}

	appt := &Appointment{
		ID:              uuid.NewString(),
		BusinessID:      req.BusinessID,
		ServiceID:       req.ServiceID,
		ClientName:      req.ClientName,
		ClientEmail:     req.ClientEmail,
		ClientPhone:     req.ClientPhone,
		ScheduledAt:     scheduledAt,
		DurationMinutes: svc.DurationMinutes,
		Status:          statusForOrigin(req.Origin),
	}
	if req.Origin == OriginPublic {
		token, err := MintCancelToken()
		if err != nil {
			return nil, err
		}
		appt.CancelToken = token
	}

	// Authoritative: the insert re-checks inside one transaction and the
	// exclusion constraint backstops it under concurrency.
	if err := s.store.Insert(ctx, appt); err != nil {
		return nil, err
	}

	s.logger.Info("appointment created",
		"appointment_id", appt.ID,
		"business_id", appt.BusinessID,
		"service_id", appt.ServiceID,
		"scheduled_at", appt.ScheduledAt,
		"status", appt.Status,
		"origin", string(req.Origin),
	)
	s.notifier.BookingCreated(ctx, appt)
	return appt, nil
}

// CancelByToken performs the one-shot public cancellation. Malformed and
// already-used tokens both report NotFound.
func (s *Service) CancelByToken(ctx context.Context, token string) (*Appointment, error) {
	if !ValidCancelToken(token) {
		return nil, ErrNotFound
	}
	appt, err := s.store.SoftDeleteByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment cancelled by token",
		"appointment_id", appt.ID,
		"business_id", appt.BusinessID,
	)
	s.notifier.BookingCancelled(ctx, appt)
	return appt, nil
}

// HasConflict exposes the detector for read paths that already hold the
// service duration, e.g. rescheduling checks.
func (s *Service) HasConflict(ctx context.Context, businessID string, startUTC time.Time, durationMinutes int, excludeID string) (bool, error) {
	return s.detector.HasConflict(ctx, businessID, startUTC, durationMinutes, excludeID)
}

// ListDay returns the active appointments of one local calendar day.
func (s *Service) ListDay(ctx context.Context, businessID string, date schedule.LocalDate) ([]Appointment, error) {
	from := date.At(0)
	to := from.Add(24 * time.Hour)
	appts, err := s.store.ListByDay(ctx, businessID, from, to)
	if err != nil {
		return nil, fmt.Errorf("appointments: list day: %w", err)
	}
	return appts, nil
}

func statusForOrigin(origin Origin) string {
	if origin == OriginDashboard {
		return StatusPending
	}
	return StatusConfirmed
}

// IsConflict reports whether the error is the booking-conflict case, kept
// distinct from NotFound/Invalid so callers re-offer fresh slots.
func IsConflict(err error) bool {
	return errors.Is(err, ErrSlotConflict)
}
