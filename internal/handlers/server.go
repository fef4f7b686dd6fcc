package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"agenda-backend/internal/auth"
	"agenda-backend/internal/booking"
	"agenda-backend/internal/cache"
	"agenda-backend/internal/config"
	"agenda-backend/internal/middleware"
	"agenda-backend/internal/models"
	"agenda-backend/internal/notifications"
	"agenda-backend/internal/validation"
)

type Server struct {
	Cfg    *config.Config
	Store  booking.Store
	Slots  *booking.SlotService
	Booker *booking.Booker
	Val    *validation.Validator
	Log    *slog.Logger
	Cache  cache.Cache
	Mailer notifications.Mailer
	Auth   *auth.Manager
	// Ready reports whether the backing store answers; nil means always ready.
	Ready func(ctx context.Context) error
	// SettingsSaved, if set, runs after an admin stores new settings.
	SettingsSaved func(models.Settings)
	Now           func() time.Time
}

func (s *Server) logWithRequest(r *http.Request) *slog.Logger {
	if r == nil {
		return s.Log
	}
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return s.Log.With(slog.String("request_id", id))
	}
	return s.Log
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Server) readTimeout() time.Duration {
	if s.Cfg != nil && s.Cfg.ReadTimeout > 0 {
		return s.Cfg.ReadTimeout
	}
	return 5 * time.Second
}

func (s *Server) cacheTTL() time.Duration {
	if s.Cfg == nil {
		return 0
	}
	return time.Duration(s.Cfg.CacheTTLSeconds) * time.Second
}
