package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/clinic-reminders/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-reminders/internal/http/middleware"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	Reminders       *handlers.RemindersHandler
	AdminAuthSecret string
	MetricsHandler  http.Handler
}

// New creates the operational router: health, metrics and the reminder
// admin routes. Admin routes are only mounted when a secret is configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Group(func(public chi.Router) {
		public.Get("/health", handlers.Health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	if cfg.AdminAuthSecret != "" && cfg.Reminders != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret, cfg.Logger))
			admin.Route("/reminders", func(rem chi.Router) {
				rem.Post("/run", cfg.Reminders.Run)
				rem.Get("/status", cfg.Reminders.Status)
			})
		})
	}

	return r
}
