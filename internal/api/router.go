package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"beacon/internal/api/handlers"
	apimiddleware "beacon/internal/api/middleware"
	"beacon/internal/config"
	"beacon/pkg/logger"
)

// Router holds dependencies for the API router
type Router struct {
	config   config.Config
	handlers *handlers.Handlers
	sessions apimiddleware.SessionResolver
	limits   apimiddleware.RateLimitStore
	logger   *logger.Logger
}

// NewRouter creates a new Router instance. limits may be nil when Redis is
// not configured; rate limiting is then skipped.
func NewRouter(cfg config.Config, h *handlers.Handlers, sessions apimiddleware.SessionResolver, limits apimiddleware.RateLimitStore, log *logger.Logger) *Router {
	return &Router{
		config:   cfg,
		handlers: h,
		sessions: sessions,
		limits:   limits,
		logger:   log.WithComponent("router"),
	}
}

// Setup sets up the Chi router with all routes and middleware
func (r *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Core middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(apimiddleware.Logger(r.logger))
	router.Use(middleware.Recoverer)

	// CORS
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   r.config.CORS.AllowedOrigins,
		AllowedMethods:   r.config.CORS.AllowedMethods,
		AllowedHeaders:   r.config.CORS.AllowedHeaders,
		AllowCredentials: r.config.CORS.AllowCredentials,
		MaxAge:           r.config.CORS.MaxAge,
	}))

	// Anonymous session, then rate limiting keyed on it
	router.Use(apimiddleware.Session(r.sessions))
	if r.config.RateLimit.Enabled && r.limits != nil {
		router.Use(apimiddleware.RateLimiter(r.limits, r.config.RateLimit))
	}

	// Long-lived connections stay outside the request timeout
	router.Get("/api/v1/stream/ws", r.handlers.Streaming.HandleWebSocket)

	router.Group(func(rt chi.Router) {
		rt.Use(middleware.Timeout(60 * time.Second))

		// Health check
		rt.Get("/", r.handlers.Health.Root)
		rt.Get("/health", r.handlers.Health.Check)
		rt.Get("/ready", r.handlers.Health.Ready)

		// Routes of the original server, kept for existing clients
		rt.Post("/api/report", r.handlers.Complaints.Report)
		rt.Post("/chat", r.handlers.Chat.Legal)
		rt.Post("/chat-volunteer", r.handlers.Chat.Volunteer)
		rt.Post("/translate", r.handlers.Chat.Translate)

		rt.Route("/api/v1", func(api chi.Router) {
			api.Route("/session", func(s chi.Router) {
				s.Post("/", r.handlers.Session.Create)
				s.Put("/language", r.handlers.Session.SetLanguage)
			})

			api.Route("/complaints", func(c chi.Router) {
				c.Get("/", r.handlers.Complaints.List)
				c.Post("/", r.handlers.Complaints.Report)
				c.Get("/categories", r.handlers.Complaints.Categories)
				c.Get("/templates/{category}", r.handlers.Complaints.Template)
				c.Post("/assess", r.handlers.Complaints.Assess)
				c.Post("/summary", r.handlers.Complaints.Summary)
				c.Get("/{caseId}", r.handlers.Complaints.Get)
			})

			api.Post("/chat/{persona}", r.handlers.Chat.Persona)

			api.Route("/salary", func(s chi.Router) {
				s.Post("/summary", r.handlers.Salary.Summary)
				s.Post("/reminder", r.handlers.Salary.Reminder)
			})

			api.Route("/sos", func(s chi.Router) {
				s.Post("/", r.handlers.SOS.Trigger)
				s.Get("/contacts", r.handlers.SOS.Contacts)
			})

			api.Get("/hotspots", r.handlers.Hotspots.Map)
			api.Get("/stream/stats", r.handlers.Streaming.GetStats)

			// Admin endpoints
			api.Route("/admin", func(admin chi.Router) {
				admin.Use(apimiddleware.AdminAuth(r.config.App.AdminKey))
				admin.Get("/jobs", r.handlers.Admin.ListJobs)
				admin.Post("/jobs/{job}", r.handlers.Admin.TriggerJob)
			})
		})
	})

	return router
}
