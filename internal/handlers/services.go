package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"agenda-backend/internal/cache"
	"agenda-backend/internal/models"
	"agenda-backend/internal/transport"
)

func (s *Server) GetServices(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	if s.Cache != nil {
		if cached, ok, err := s.Cache.Get(r.Context(), cache.ServicesKey); err == nil && ok {
			log.Info("services: cache hit")
			writeCachedJSON(w, http.StatusOK, cached)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.readTimeout())
	defer cancel()

	var items []models.Service
	err := retryRead(ctx, log, "services", func(ctx context.Context) error {
		var err error
		items, err = s.Store.ListServices(ctx, true)
		return storeError("list services", err)
	})
	if err != nil {
		writeBookingError(w, log, "services", err)
		return
	}

	response := map[string]interface{}{
		"services": items,
	}

	if payload, err := encodeJSON(response); err == nil && s.Cache != nil {
		_ = s.Cache.Set(r.Context(), cache.ServicesKey, payload, s.cacheTTL())
	}

	log.Info("services: ok", slog.Int("count", len(items)))
	transport.WriteJSON(w, http.StatusOK, response)
}
