package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"agenda-backend/internal/transport"
)

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyCheck reports 503 while the store does not answer.
func (s *Server) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if s.Ready == nil {
		transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.Ready(ctx); err != nil {
		s.logWithRequest(r).Warn("ready: store unavailable", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusServiceUnavailable, "store unavailable", nil)
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
