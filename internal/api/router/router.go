package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/opd-frontdesk/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/opd-frontdesk/internal/http/middleware"
	"github.com/wolfman30/opd-frontdesk/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	DoctorsHandler     *handlers.DoctorsHandler
	PatientsHandler    *handlers.PatientsHandler
	OPDHandler         *handlers.OPDHandler
	MetricsHandler     http.Handler
	RateLimiter        *httpmiddleware.RateLimiter
	OperatorJWTSecret  string
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Operator endpoints (JWT protected when a secret is configured)
	r.Group(func(operator chi.Router) {
		if cfg.OperatorJWTSecret != "" {
			operator.Use(httpmiddleware.OperatorJWT(cfg.OperatorJWTSecret))
		}
		if cfg.RateLimiter != nil {
			operator.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		}
		if cfg.DoctorsHandler != nil {
			operator.Route("/doctors", func(r chi.Router) {
				r.Get("/", cfg.DoctorsHandler.List)
				r.Post("/", cfg.DoctorsHandler.Create)
			})
		}
		if cfg.PatientsHandler != nil {
			operator.Get("/patients/suggest", cfg.PatientsHandler.Suggest)
		}
		if cfg.OPDHandler != nil {
			operator.Mount("/opd", cfg.OPDHandler.Routes())
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
