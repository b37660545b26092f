package appointments

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Appointment statuses. Dashboard bookings start Pending; client-originated
// bookings are auto-confirmed since no staff triage step exists.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// Booking origins decide the initial status and whether a cancel token is
// minted.
type Origin string

const (
	OriginDashboard Origin = "dashboard"
	OriginPublic    Origin = "public"
	OriginWhatsApp  Origin = "whatsapp"
)

// Appointment is a booked interval. ScheduledAt is always stored in UTC;
// DurationMinutes is the service duration captured at booking time so
// conflict math never depends on later catalog edits.
type Appointment struct {
	ID              string    `json:"id"`
	BusinessID      string    `json:"business_id"`
	ServiceID       string    `json:"service_id"`
	ClientName      string    `json:"client_name"`
	ClientEmail     string    `json:"client_email,omitempty"`
	ClientPhone     string    `json:"client_phone,omitempty"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	CancelToken     string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
}

// EndsAt returns the half-open interval end.
func (a *Appointment) EndsAt() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// CreateRequest carries a booking attempt.
type CreateRequest struct {
	BusinessID  string    `json:"business_id"`
	ServiceID   string    `json:"service_id"`
	ClientName  string    `json:"client_name"`
	ClientEmail string    `json:"client_email"`
	ClientPhone string    `json:"client_phone"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Origin      Origin    `json:"-"`
}

// Validate checks required fields.
func (r *CreateRequest) Validate() error {
	if strings.TrimSpace(r.BusinessID) == "" {
		return fmt.Errorf("%w: business_id is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.ServiceID) == "" {
		return fmt.Errorf("%w: service_id is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.ClientName) == "" {
		return fmt.Errorf("%w: client_name is required", ErrInvalidRequest)
	}
	if r.ScheduledAt.IsZero() {
		return fmt.Errorf("%w: scheduled_at is required", ErrInvalidRequest)
	}
	switch r.Origin {
	case OriginDashboard, OriginPublic, OriginWhatsApp:
	default:
		return fmt.Errorf("%w: unknown origin %q", ErrInvalidRequest, r.Origin)
	}
	return nil
}

var cancelTokenPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// MintCancelToken produces the 32-hex single-use credential mailed to
// public-booking clients.
func MintCancelToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("appointments: mint cancel token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ValidCancelToken reports whether the value has the minted shape. Malformed
// tokens short-circuit to NotFound without touching storage.
func ValidCancelToken(token string) bool {
	return cancelTokenPattern.MatchString(token)
}
