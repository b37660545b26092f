package appointments

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agendafacil/booking-platform/internal/catalog"
	"github.com/agendafacil/booking-platform/internal/observability/metrics"
	"github.com/agendafacil/booking-platform/internal/schedule"
	"github.com/agendafacil/booking-platform/internal/tenancy"
	"github.com/agendafacil/booking-platform/pkg/logging"
)

// Handler serves the booking HTTP surface: slot listings, bookings,
// cancellation, and the owner's business-hours editor.
type Handler struct {
	availability *schedule.Availability
	bookings     *Service
	hours        *schedule.HoursStore
	metrics      *metrics.BookingMetrics
	logger       *logging.Logger
}

// NewHandler creates the booking handler.
func NewHandler(availability *schedule.Availability, bookings *Service, hours *schedule.HoursStore, m *metrics.BookingMetrics, logger *logging.Logger) *Handler {
	if availability == nil {
		panic("appointments: availability required")
	}
	if bookings == nil {
		panic("appointments: booking service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		availability: availability,
		bookings:     bookings,
		hours:        hours,
		metrics:      m,
		logger:       logger,
	}
}

type slotsResponse struct {
	Date  string          `json:"date"`
	Slots []schedule.Slot `json:"slots"`
}

// PublicSlots handles GET /public/slots?business_id&service_id&date&step.
func (h *Handler) PublicSlots(w http.ResponseWriter, r *http.Request) {
	h.listSlots(w, r, r.URL.Query().Get("business_id"), "public")
}

// AdminSlots handles GET /admin/businesses/{businessID}/slots.
func (h *Handler) AdminSlots(w http.ResponseWriter, r *http.Request) {
	h.listSlots(w, r, adminBusinessID(r), "admin")
}

// adminBusinessID reads the tenant scope set by the admin router, falling
// back to the route parameter when the handler is mounted bare.
func adminBusinessID(r *http.Request) string {
	if businessID, ok := tenancy.BusinessIDFromContext(r.Context()); ok {
		return businessID
	}
	return chi.URLParam(r, "businessID")
}

func (h *Handler) listSlots(w http.ResponseWriter, r *http.Request, businessID, surface string) {
	started := time.Now()
	query := r.URL.Query()
	serviceID := query.Get("service_id")
	if businessID == "" || serviceID == "" {
		http.Error(w, "business_id and service_id are required", http.StatusBadRequest)
		return
	}
	date, err := schedule.ParseLocalDate(query.Get("date"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	step := 0
	if raw := query.Get("step"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "step must be a positive number of minutes", http.StatusBadRequest)
			return
		}
		step = parsed
	}

	slots, err := h.availability.ListSlotsWithAvailability(r.Context(), businessID, serviceID, date, step)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.metrics.ObserveAvailabilityLatency(surface, time.Since(started).Seconds())
	writeJSON(w, http.StatusOK, slotsResponse{Date: date.String(), Slots: slots})
}

type createdResponse struct {
	*Appointment
	CancelToken string `json:"cancel_token,omitempty"`
}

// CreatePublic handles POST /public/appointments. The booking is
// auto-confirmed and the minted cancel token is returned exactly once.
func (h *Handler) CreatePublic(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, "", OriginPublic)
}

// CreateAdmin handles POST /admin/businesses/{businessID}/appointments.
func (h *Handler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, adminBusinessID(r), OriginDashboard)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, businessID string, origin Origin) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode booking request", "error", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if businessID != "" {
		req.BusinessID = businessID
	}
	req.Origin = origin

	appt, err := h.bookings.Create(r.Context(), req)
	if err != nil {
		h.metrics.ObserveBooking(string(origin), outcomeLabel(err))
		h.writeError(w, err)
		return
	}
	h.metrics.ObserveBooking(string(origin), "created")

	writeJSON(w, http.StatusCreated, createdResponse{Appointment: appt, CancelToken: appt.CancelToken})
}

// CancelByToken handles POST /public/cancel?token=.
func (h *Handler) CancelByToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	appt, err := h.bookings.CancelByToken(r.Context(), token)
	if err != nil {
		h.metrics.ObserveCancellation("not_found")
		h.writeError(w, err)
		return
	}
	h.metrics.ObserveCancellation("cancelled")
	writeJSON(w, http.StatusOK, map[string]string{
		"status":         "cancelled",
		"appointment_id": appt.ID,
	})
}

// ListDay handles GET /admin/businesses/{businessID}/appointments?date=.
func (h *Handler) ListDay(w http.ResponseWriter, r *http.Request) {
	businessID := adminBusinessID(r)
	date, err := schedule.ParseLocalDate(r.URL.Query().Get("date"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	appts, err := h.bookings.ListDay(r.Context(), businessID, date)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":         date.String(),
		"appointments": appts,
		"count":        len(appts),
	})
}

type upsertHoursRequest struct {
	OpenMinutes  int `json:"open_minutes"`
	CloseMinutes int `json:"close_minutes"`
}

// UpsertHours handles PUT /admin/businesses/{businessID}/hours/{weekday}.
func (h *Handler) UpsertHours(w http.ResponseWriter, r *http.Request) {
	businessID := adminBusinessID(r)
	weekday, err := parseWeekday(chi.URLParam(r, "weekday"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req upsertHoursRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	row := schedule.BusinessHours{
		BusinessID:   businessID,
		Weekday:      weekday,
		OpenMinutes:  req.OpenMinutes,
		CloseMinutes: req.CloseMinutes,
	}
	if err := h.hours.Upsert(r.Context(), row); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// CloseDay handles DELETE /admin/businesses/{businessID}/hours/{weekday}.
func (h *Handler) CloseDay(w http.ResponseWriter, r *http.Request) {
	businessID := adminBusinessID(r)
	weekday, err := parseWeekday(chi.URLParam(r, "weekday"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	found, err := h.hours.CloseDay(r.Context(), businessID, weekday)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !found {
		http.Error(w, "no hours configured for that weekday", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseWeekday(raw string) (time.Weekday, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > 6 {
		return 0, schedule.ErrInvalidWeekday
	}
	return time.Weekday(n), nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSlotConflict):
		http.Error(w, "requested time is no longer available", http.StatusConflict)
	case errors.Is(err, ErrNotFound),
		errors.Is(err, catalog.ErrServiceNotFound),
		errors.Is(err, catalog.ErrBusinessNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrPastTime),
		errors.Is(err, ErrServiceInactive),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, schedule.ErrInvalidWindow),
		errors.Is(err, schedule.ErrInvalidWeekday),
		errors.Is(err, schedule.ErrInvalidDate):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, ErrUnavailable):
		http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
	default:
		h.logger.Error("booking request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrSlotConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound), errors.Is(err, catalog.ErrServiceNotFound):
		return "not_found"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "invalid"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
