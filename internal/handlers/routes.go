package handlers

import (
	"net/http"
	"time"

	"agenda-backend/internal/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Routes builds the HTTP handler. The same API is served under /api and /api/v1.
func (s *Server) Routes(meetingsLimiter, loginLimiter middleware.Limiter) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(s.Log))
	if s.Cfg != nil {
		r.Use(middleware.CORS(s.Cfg.FrontendOrigins))
	}
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	r.Get("/health", s.Health)
	r.Get("/ready", s.ReadyCheck)

	adminKey := ""
	if s.Cfg != nil {
		adminKey = s.Cfg.AdminAPIKey
	}
	adminAuth := middleware.AdminAuth(adminKey, s.Auth)

	register := func(api chi.Router) {
		api.Get("/services", s.GetServices)
		api.Get("/services/{id}/availability", s.GetServiceAvailability)
		api.Get("/availability/next", s.GetNextAvailability)
		api.With(limit(meetingsLimiter)).Post("/meetings", s.CreateMeeting)
		api.Get("/meetings/{id}", s.GetMeeting)

		api.Route("/admin", func(admin chi.Router) {
			admin.With(limit(loginLimiter)).Post("/login", s.AdminLogin)
			admin.With(limit(loginLimiter)).Post("/register", s.AdminRegister)
			admin.Post("/refresh", s.AdminRefresh)
			admin.Post("/logout", s.AdminLogout)

			admin.Group(func(protected chi.Router) {
				protected.Use(adminAuth)

				protected.Get("/services", s.AdminListServices)
				protected.Post("/services", s.AdminCreateService)
				protected.Put("/services/{id}", s.AdminUpdateService)
				protected.Delete("/services/{id}", s.AdminDeleteService)

				protected.Get("/availability", s.AdminListAvailability)
				protected.Post("/availability", s.AdminCreateAvailability)
				protected.Put("/availability/{id}", s.AdminUpdateAvailability)
				protected.Delete("/availability/{id}", s.AdminDeleteAvailability)

				protected.Get("/blocked-dates", s.AdminListBlockedDates)
				protected.Post("/blocked-dates", s.AdminCreateBlockedDates)
				protected.Delete("/blocked-dates/{id}", s.AdminDeleteBlockedDate)

				protected.Get("/settings", s.AdminGetSettings)
				protected.Put("/settings", s.AdminUpdateSettings)

				protected.Get("/meetings", s.AdminListMeetings)
				protected.Patch("/meetings/{id}/status", s.AdminUpdateMeetingStatus)
				protected.Delete("/meetings/{id}", s.AdminDeleteMeeting)
			})
		})
	}

	r.Route("/api", register)
	r.Route("/api/v1", register)
	return r
}

func limit(l middleware.Limiter) func(http.Handler) http.Handler {
	if l == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return l.Middleware
}
