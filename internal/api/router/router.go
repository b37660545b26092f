package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/agendafacil/booking-platform/internal/appointments"
	httpmiddleware "github.com/agendafacil/booking-platform/internal/http/middleware"
	"github.com/agendafacil/booking-platform/internal/tenancy"
	"github.com/agendafacil/booking-platform/internal/whatsapp"
	"github.com/agendafacil/booking-platform/pkg/logging"
)

// Config holds the wired handlers the router mounts.
type Config struct {
	Logger             *logging.Logger
	BookingHandler     *appointments.Handler
	WhatsAppWebhook    *whatsapp.WebhookHandler
	MetricsHandler     http.Handler
	AdminAuthSecret    string
	CORSAllowedOrigins []string
}

// New creates the chi router with every route configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Client-facing surface: the booking widget and the WhatsApp channel.
	r.Group(func(public chi.Router) {
		public.Get("/public/slots", cfg.BookingHandler.PublicSlots)
		public.Post("/public/appointments", cfg.BookingHandler.CreatePublic)
		public.Post("/public/cancel", cfg.BookingHandler.CancelByToken)
		if cfg.WhatsAppWebhook != nil {
			public.Post("/webhooks/whatsapp", cfg.WhatsAppWebhook.ServeHTTP)
		}
	})

	// Owner dashboard, JWT-gated.
	r.Route("/admin", func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		admin.Route("/businesses/{businessID}", func(biz chi.Router) {
			biz.Use(businessScope)
			biz.Get("/slots", cfg.BookingHandler.AdminSlots)
			biz.Get("/appointments", cfg.BookingHandler.ListDay)
			biz.Post("/appointments", cfg.BookingHandler.CreateAdmin)
			biz.Put("/hours/{weekday}", cfg.BookingHandler.UpsertHours)
			biz.Delete("/hours/{weekday}", cfg.BookingHandler.CloseDay)
		})
	})

	return r
}

// businessScope lifts the {businessID} route parameter into the request
// context so downstream code is tenant-aware without re-parsing the URL.
func businessScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if businessID := chi.URLParam(r, "businessID"); businessID != "" {
			r = r.WithContext(tenancy.WithBusinessID(r.Context(), businessID))
		}
		next.ServeHTTP(w, r)
	})
}
